package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dstevens79/eve-corp-auth/core"
)

// KeyringDiagnostic reports a decrypt that had to fall back to a
// retired key, which means the stored token should be resealed.
type KeyringDiagnostic struct {
	OccurredAt time.Time
	KeyID      string
	Version    int
}

type KeyringDiagnosticHook func(event KeyringDiagnostic)

type KeyringOption func(*KeyringSecretProvider)

// KeyringSecretProvider supports key rotation: the current provider
// seals new material while retired providers stay available for
// decrypting tokens sealed before the rotation.
type KeyringSecretProvider struct {
	current        core.SecretProvider
	retired        []core.SecretProvider
	diagnosticHook KeyringDiagnosticHook
	now            func() time.Time

	mu sync.RWMutex
}

func NewKeyringSecretProvider(current core.SecretProvider, opts ...KeyringOption) (*KeyringSecretProvider, error) {
	if current == nil {
		return nil, fmt.Errorf("security: current secret provider is required")
	}
	provider := &KeyringSecretProvider{
		current: current,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func WithRetiredSecretProvider(retired core.SecretProvider) KeyringOption {
	return func(p *KeyringSecretProvider) {
		if p == nil || retired == nil {
			return
		}
		p.retired = append(p.retired, retired)
	}
}

func WithKeyringDiagnostics(hook KeyringDiagnosticHook) KeyringOption {
	return func(p *KeyringSecretProvider) {
		if p == nil {
			return
		}
		p.diagnosticHook = hook
	}
}

func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(p *KeyringSecretProvider) {
		if p == nil || now == nil {
			return
		}
		p.now = now
	}
}

func (p *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	return current.Encrypt(ctx, plaintext)
}

func (p *KeyringSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	p.mu.RLock()
	current := p.current
	retired := append([]core.SecretProvider(nil), p.retired...)
	p.mu.RUnlock()

	plaintext, currentErr := current.Decrypt(ctx, ciphertext)
	if currentErr == nil {
		return plaintext, nil
	}

	for _, candidate := range retired {
		plaintext, err := candidate.Decrypt(ctx, ciphertext)
		if err != nil {
			continue
		}
		p.emitDiagnostic(candidate)
		return plaintext, nil
	}
	return nil, currentErr
}

// Rotate makes next the sealing key and parks the previous one on the
// retired list so older envelopes stay readable.
func (p *KeyringSecretProvider) Rotate(next core.SecretProvider) error {
	if p == nil {
		return fmt.Errorf("security: secret provider is nil")
	}
	if next == nil {
		return fmt.Errorf("security: next secret provider is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retired = append([]core.SecretProvider{p.current}, p.retired...)
	p.current = next
	return nil
}

func (p *KeyringSecretProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current == nil {
		return "", 0
	}
	return current.Metadata()
}

func (p *KeyringSecretProvider) emitDiagnostic(provider core.SecretProvider) {
	if p.diagnosticHook == nil {
		return
	}
	keyID, version := provider.Metadata()
	p.diagnosticHook(KeyringDiagnostic{
		OccurredAt: p.now(),
		KeyID:      keyID,
		Version:    version,
	})
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)
