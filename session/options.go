package session

import "github.com/sirupsen/logrus"

// Option is a functional option for configuring a Provider.
type Option func(*providerConfig)

// providerConfig holds configuration shared by all providers.
type providerConfig struct {
	classify Classifier
	logger   logrus.FieldLogger
}

// WithClassifier sets the backend-specific transport error classifier.
// Errors already wrapped in a quizstore.TransportError are recognized without it.
func WithClassifier(classify Classifier) Option {
	return func(c *providerConfig) {
		c.classify = classify
	}
}

// WithLogger sets the logger used for connection lifecycle events.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *providerConfig) {
		c.logger = logger
	}
}
