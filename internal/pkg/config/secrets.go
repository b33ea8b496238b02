// internal/pkg/config/secrets.go
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Secret keys the loader overlays onto the already-built config when a
// provider serves them.
const (
	secretKeyDBPassword    = "DB_PASSWORD"
	secretKeyRedisPassword = "REDIS_PASSWORD"
	secretKeyAWSSecretKey  = "AWS_SECRET_ACCESS_KEY"
)

// secretsCacheTTL bounds how long fetched secrets are reused before the
// provider is asked again.
const secretsCacheTTL = 5 * time.Minute

// SecretsProvider resolves sensitive config values from an external store.
type SecretsProvider interface {
	GetSecret(ctx context.Context, key string) (string, error)
	GetSecrets(ctx context.Context, keys []string) (map[string]string, error)
}

// NewSecretsProvider selects a provider from SECRETS_PROVIDER. "aws" reads
// one JSON secret from AWS Secrets Manager; anything else falls back to
// plain environment variables.
func NewSecretsProvider(logger *slog.Logger) (SecretsProvider, error) {
	switch os.Getenv("SECRETS_PROVIDER") {
	case "aws":
		return NewAWSSecretsProvider(
			getEnv("AWS_REGION", "us-east-1"),
			getEnv("SECRETS_NAME", "cartd/app"),
			logger,
		)
	default:
		return EnvSecretsProvider{}, nil
	}
}

// AWSSecretsProvider serves keys out of a single JSON secret in AWS
// Secrets Manager, cached for secretsCacheTTL.
type AWSSecretsProvider struct {
	client     *secretsmanager.Client
	secretName string
	logger     *slog.Logger

	mu        sync.RWMutex
	cache     map[string]string
	lastFetch time.Time
}

// NewAWSSecretsProvider creates a provider bound to one named secret.
func NewAWSSecretsProvider(region, secretName string, logger *slog.Logger) (*AWSSecretsProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSecretsProvider{
		client:     secretsmanager.NewFromConfig(cfg),
		secretName: secretName,
		cache:      make(map[string]string),
		logger:     logger.With(slog.String("component", "secrets")),
	}, nil
}

// GetSecret resolves a single key.
func (p *AWSSecretsProvider) GetSecret(ctx context.Context, key string) (string, error) {
	secrets, err := p.GetSecrets(ctx, []string{key})
	if err != nil {
		return "", err
	}

	val, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("secret key %s not found in %s", key, p.secretName)
	}
	return val, nil
}

// GetSecrets resolves several keys at once, fetching the backing secret at
// most once per cache window.
func (p *AWSSecretsProvider) GetSecrets(ctx context.Context, keys []string) (map[string]string, error) {
	p.mu.RLock()
	if time.Since(p.lastFetch) < secretsCacheTTL && len(p.cache) > 0 {
		found := p.filterLocked(keys)
		p.mu.RUnlock()
		if len(found) == len(keys) {
			return found, nil
		}
	} else {
		p.mu.RUnlock()
	}

	p.logger.InfoContext(ctx, "fetching secrets",
		slog.String("secret_name", p.secretName))

	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(p.secretName),
		VersionStage: aws.String("AWSCURRENT"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret value: %w", err)
	}

	var data map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &data); err != nil {
		return nil, fmt.Errorf("failed to parse secret JSON: %w", err)
	}

	p.mu.Lock()
	p.cache = data
	p.lastFetch = time.Now()
	found := p.filterLocked(keys)
	p.mu.Unlock()

	return found, nil
}

// filterLocked projects the cache onto the requested keys. Caller holds a
// read or write lock.
func (p *AWSSecretsProvider) filterLocked(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := p.cache[key]; ok {
			out[key] = val
		}
	}
	return out
}

// EnvSecretsProvider reads secrets straight from the process environment.
type EnvSecretsProvider struct{}

func (EnvSecretsProvider) GetSecret(_ context.Context, key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("environment variable %s not set", key)
	}
	return val, nil
}

func (EnvSecretsProvider) GetSecrets(_ context.Context, keys []string) (map[string]string, error) {
	secrets := make(map[string]string, len(keys))
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			secrets[key] = val
		}
	}
	return secrets, nil
}

// applySecrets overlays provider-served values onto the already-built
// config. Missing keys keep their env-derived values.
func applySecrets(ctx context.Context, cfg *Config, provider SecretsProvider, logger *slog.Logger) error {
	secrets, err := provider.GetSecrets(ctx, []string{
		secretKeyDBPassword,
		secretKeyRedisPassword,
		secretKeyAWSSecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}

	if val, ok := secrets[secretKeyDBPassword]; ok {
		cfg.Database.Password = val
	}
	if val, ok := secrets[secretKeyRedisPassword]; ok {
		cfg.Redis.Password = val
		cfg.Asynq.RedisPassword = val
	}
	if val, ok := secrets[secretKeyAWSSecretKey]; ok {
		cfg.AWS.SecretAccessKey = val
	}

	logger.Debug("secrets applied", slog.Int("resolved", len(secrets)))
	return nil
}
