package tasks

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/likesync/internal/models"
	"github.com/desertthunder/likesync/internal/shared"
	"golang.org/x/crypto/nacl/box"
)

// SecretStore holds encrypted secrets and publishes the key they are sealed against.
type SecretStore interface {
	PublicKey(ctx context.Context) (*models.RecipientKey, error)
	PutSecret(ctx context.Context, name string, payload models.SecretPayload) error
}

// PublisherState is the lifecycle state of a [Publisher].
type PublisherState int

const (
	AwaitingKey PublisherState = iota
	Ready
)

func (s PublisherState) String() string {
	switch s {
	case AwaitingKey:
		return "awaiting_key"
	case Ready:
		return "ready"
	default:
		return ""
	}
}

// PublisherOpts contains configuration for credential publishing.
type PublisherOpts struct {
	SecretName string      // Name of the secret replaced on each publish
	Logger     *log.Logger // Default: log.Default()
	Rand       io.Reader   // Entropy for ephemeral keys (default: crypto/rand)
}

// Publisher seals refreshed credentials with the store's public key and writes them as a secret.
type Publisher struct {
	store  SecretStore
	name   string
	logger *log.Logger
	rand   io.Reader

	mu        sync.Mutex
	state     PublisherState
	key       models.RecipientKey
	recipient [32]byte
	published atomic.Int64
	failures  atomic.Int64
}

// NewPublisher creates a publisher in the [AwaitingKey] state.
func NewPublisher(store SecretStore, opts PublisherOpts) *Publisher {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Rand == nil {
		opts.Rand = rand.Reader
	}

	return &Publisher{
		store:  store,
		name:   opts.SecretName,
		logger: opts.Logger,
		rand:   opts.Rand,
	}
}

// Init fetches the recipient key. The key is kept for the life of the publisher.
func (p *Publisher) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Ready {
		return nil
	}

	key, err := p.store.PublicKey(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrPublisherNotReady, err)
	}

	raw, err := base64.StdEncoding.DecodeString(key.Key)
	if err != nil {
		return fmt.Errorf("%w: public key is not base64: %v", shared.ErrPublisherNotReady, err)
	}
	if len(raw) != len(p.recipient) {
		return fmt.Errorf("%w: public key is %d bytes, want %d", shared.ErrPublisherNotReady, len(raw), len(p.recipient))
	}

	copy(p.recipient[:], raw)
	p.key = *key
	p.state = Ready

	p.logger.Debug("recipient key loaded", "key_id", key.KeyID)
	return nil
}

// State reports whether the recipient key has been loaded.
func (p *Publisher) State() PublisherState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Publish seals cred and replaces the secret with it. Only one publish runs at a time.
func (p *Publisher) Publish(ctx context.Context, cred models.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Ready {
		p.failures.Add(1)
		return shared.ErrPublisherNotReady
	}

	payload, err := p.seal(cred)
	if err != nil {
		p.failures.Add(1)
		return fmt.Errorf("%w: %v", shared.ErrPublishFailed, err)
	}

	if err := p.store.PutSecret(ctx, p.name, payload); err != nil {
		p.failures.Add(1)
		return fmt.Errorf("%w: %w", shared.ErrPublishFailed, err)
	}

	p.published.Add(1)
	p.logger.Info("credential published", "secret", p.name, "key_id", payload.KeyID)
	return nil
}

// seal encrypts the serialized credential with a fresh ephemeral keypair.
func (p *Publisher) seal(cred models.Credential) (models.SecretPayload, error) {
	plaintext, err := cred.Serialize()
	if err != nil {
		return models.SecretPayload{}, err
	}

	sealed, err := box.SealAnonymous(nil, plaintext, &p.recipient, p.rand)
	if err != nil {
		return models.SecretPayload{}, fmt.Errorf("failed to seal credential: %w", err)
	}

	return models.SecretPayload{
		EncryptedValue: base64.StdEncoding.EncodeToString(sealed),
		KeyID:          p.key.KeyID,
	}, nil
}

// Listen publishes every credential received on creds until the channel closes or ctx ends.
//
// Failures are logged and, when errs is not nil, offered on errs without blocking.
func (p *Publisher) Listen(ctx context.Context, creds <-chan models.Credential, errs chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case cred, ok := <-creds:
			if !ok {
				return
			}
			if err := p.Publish(ctx, cred); err != nil {
				p.logger.Error("credential publish failed", "secret", p.name, "error", err)
				if errs != nil {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}
	}
}

// Published returns the number of successful publishes.
func (p *Publisher) Published() int {
	return int(p.published.Load())
}

// Failures returns the number of failed publishes.
func (p *Publisher) Failures() int {
	return int(p.failures.Load())
}
