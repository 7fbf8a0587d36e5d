package notifications

import (
	"log/slog"
	"time"
)

// Open returns the AMQP publisher behind a circuit breaker when amqpURL is
// set, otherwise a notifier that only logs. close releases the connection.
func Open(amqpURL, exchange string, log *slog.Logger) (n Notifier, close func() error, err error) {
	if amqpURL == "" {
		return NewLogNotifier(log), func() error { return nil }, nil
	}

	pub, err := NewAMQPNotifier(amqpURL, exchange)
	if err != nil {
		return nil, nil, err
	}

	protected := NewProtectedNotifier(pub, ProtectedNotifierConfig{
		Timeout:          3 * time.Second,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMaxCalls: 1,
		Logger:           log,
	})

	return protected, pub.Close, nil
}
