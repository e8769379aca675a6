package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"chatrelay/pkg/config"
)

// Prefix marks a configuration value stored in SSM Parameter Store.
const Prefix = "ssm:"

// ssmAPI is the minimal AWS SSM interface required by Client.
// *ssm.Client from aws-sdk-go-v2 satisfies this interface.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter fetches one decrypted parameter value.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps an AWS SSM API for parameter retrieval.
type Client struct {
	api ssmAPI
}

// New creates a Client with the given SSM API implementation.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return strings.TrimSpace(*out.Parameter.Value), nil
}

// HasReferences reports whether any secret-bearing field points at SSM.
func HasReferences(cfg *config.Config) bool {
	for _, field := range secretFields(cfg) {
		if isReference(*field) {
			return true
		}
	}
	return false
}

// Resolve replaces every "ssm:/name" secret in cfg with its parameter value.
// It runs once at startup; plain values are left untouched.
func Resolve(ctx context.Context, getter Getter, cfg *config.Config) error {
	for _, field := range secretFields(cfg) {
		if !isReference(*field) {
			continue
		}
		if getter == nil {
			return errors.New("paramstore: ssm reference configured without a parameter store")
		}

		value, err := getter.GetParameter(ctx, strings.TrimPrefix(strings.TrimSpace(*field), Prefix))
		if err != nil {
			return err
		}
		*field = value
	}

	return nil
}

// ResolveFromEnvironment loads AWS credentials only when cfg actually holds a
// reference, so deployments without AWS never touch the SDK.
func ResolveFromEnvironment(ctx context.Context, cfg *config.Config) error {
	if !HasReferences(cfg) {
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("paramstore: load aws config: %w", err)
	}

	client, err := New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}

	return Resolve(ctx, client, cfg)
}

func secretFields(cfg *config.Config) []*string {
	return []*string{
		&cfg.Telegram.Token,
		&cfg.Completion.APIKey,
		&cfg.Completion.Password,
		&cfg.Store.URI,
	}
}

func isReference(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), Prefix)
}
