// Package credentials resolves catalog credential references. A value is
// either a literal secret, "env:NAME" for an environment variable, or
// "awssm:ID" for an AWS Secrets Manager secret.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

const (
	prefixEnv   = "env:"
	prefixAWSSM = "awssm:"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretEmpty    = errors.New("secret is empty")
)

// SecretsManagerAPI is the part of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Resolver is safe for concurrent use. The Secrets Manager client is
// created on first use so runs without awssm references never touch AWS.
type Resolver struct {
	Region string

	mu  sync.Mutex
	api SecretsManagerAPI
}

func NewResolver(region string) *Resolver {
	return &Resolver{Region: region}
}

// NewResolverWithAPI uses the given client for awssm references.
func NewResolverWithAPI(api SecretsManagerAPI) *Resolver {
	return &Resolver{api: api}
}

func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, prefixEnv):
		name := strings.TrimPrefix(ref, prefixEnv)
		val, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable %s: %w", name, ErrSecretNotFound)
		}
		if val == "" {
			return "", fmt.Errorf("environment variable %s: %w", name, ErrSecretEmpty)
		}
		return val, nil
	case strings.HasPrefix(ref, prefixAWSSM):
		return r.fromSecretsManager(ctx, strings.TrimPrefix(ref, prefixAWSSM))
	default:
		return ref, nil
	}
}

func (r *Resolver) fromSecretsManager(ctx context.Context, id string) (string, error) {
	api, err := r.client(ctx)
	if err != nil {
		return "", err
	}

	out, err := api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return "", fmt.Errorf("secret %s: %w", id, ErrSecretNotFound)
		}
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}

	if out.SecretString != nil && *out.SecretString != "" {
		return *out.SecretString, nil
	}
	if len(out.SecretBinary) > 0 {
		return string(out.SecretBinary), nil
	}
	return "", fmt.Errorf("secret %s: %w", id, ErrSecretEmpty)
}

func (r *Resolver) client(ctx context.Context) (SecretsManagerAPI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.api != nil {
		return r.api, nil
	}

	var opts []func(*config.LoadOptions) error
	if r.Region != "" {
		opts = append(opts, config.WithRegion(r.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	r.api = secretsmanager.NewFromConfig(cfg)
	return r.api, nil
}
