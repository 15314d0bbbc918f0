/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package pulsar

import (
    "context"
    "fmt"

    pulsarclient "github.com/apache/pulsar-client-go/pulsar"
    "github.com/example/jira-relay/internal/config"
    "github.com/rs/zerolog"
)

// Producer owns the long-lived Pulsar connection and producer handle. Both are
// acquired once at startup and must be released with Close on every exit path.
// The handle is safe for concurrent use across webhook requests.
type Producer struct {
    client   pulsarclient.Client
    producer pulsarclient.Producer
    log      zerolog.Logger
}

func New(cfg config.Config, log zerolog.Logger) (*Producer, error) {
    opts := pulsarclient.ClientOptions{
        URL:               cfg.PulsarServiceURL,
        ConnectionTimeout: cfg.PulsarTimeout,
        OperationTimeout:  cfg.PulsarTimeout,
    }
    if cfg.PulsarToken != "" {
        opts.Authentication = pulsarclient.NewAuthenticationToken(cfg.PulsarToken)
    }
    client, err := pulsarclient.NewClient(opts)
    if err != nil { return nil, fmt.Errorf("pulsar: client: %w", err) }
    producer, err := client.CreateProducer(pulsarclient.ProducerOptions{Topic: cfg.PulsarTopic})
    if err != nil {
        client.Close()
        return nil, fmt.Errorf("pulsar: producer for topic %s: %w", cfg.PulsarTopic, err)
    }
    log.Info().Str("topic", cfg.PulsarTopic).Msg("pulsar producer ready")
    return &Producer{client: client, producer: producer, log: log}, nil
}

// Send publishes one payload and waits for broker acknowledgment.
func (p *Producer) Send(ctx context.Context, payload []byte) error {
    _, err := p.producer.Send(ctx, &pulsarclient.ProducerMessage{Payload: payload})
    return err
}

func (p *Producer) Close() {
    p.producer.Close()
    p.client.Close()
}
