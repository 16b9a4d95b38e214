package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// KMSService returns the KMS service.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// KMSKeeper returns the keeper wrapping the configured secrets, or nil when KMS_KEY_URI is unset.
func (c *Container) KMSKeeper() (cryptoDomain.KMSKeeper, error) {
	var err error
	c.kmsKeeperInit.Do(func() {
		c.kmsKeeper, err = c.initKMSKeeper()
		if err != nil {
			c.initErrors["kmsKeeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["kmsKeeper"]; exists {
		return nil, storedErr
	}
	return c.kmsKeeper, nil
}

// KeyStore returns the in-memory key store loaded from configuration.
func (c *Container) KeyStore() (*cryptoService.MemoryKeyStore, error) {
	var err error
	c.keyStoreInit.Do(func() {
		c.keyStore, err = c.initKeyStore()
		if err != nil {
			c.initErrors["keyStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyStore"]; exists {
		return nil, storedErr
	}
	return c.keyStore, nil
}

// KeyValidator returns the secret validator.
func (c *Container) KeyValidator() cryptoService.KeyValidator {
	c.keyValidatorInit.Do(func() {
		c.keyValidator = cryptoService.NewEntropyKeyValidator(c.config.MinKeyLength)
	})
	return c.keyValidator
}

// Engine returns the crypto engine, instrumented when metrics are enabled.
func (c *Container) Engine() (cryptoService.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine()
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

func (c *Container) initKMSKeeper() (cryptoDomain.KMSKeeper, error) {
	if c.config.KMSKeyURI == "" {
		return nil, nil
	}
	keeper, err := c.KMSService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open kms keeper for %s: %w", c.config.KMSProvider, err)
	}
	return keeper, nil
}

// initKeyStore validates the configuration and decodes the configured secrets.
func (c *Container) initKeyStore() (*cryptoService.MemoryKeyStore, error) {
	if err := c.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	keeper, err := c.KMSKeeper()
	if err != nil {
		return nil, err
	}

	keyStore, err := cryptoService.LoadMemoryKeyStore(
		context.Background(),
		cryptoService.KeyStoreConfig{
			ActiveSecret:      c.config.ActiveSecret,
			ActiveVersion:     c.config.ActiveSecretVersion,
			PreviousSecret:    c.config.PreviousSecret,
			PreviousVersion:   c.config.PreviousSecretVersion,
			SearchIndexSecret: c.config.SearchIndexSecret,
			Algorithm:         cryptoDomain.Algorithm(c.config.CryptoAlgorithm),
		},
		keeper,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load key store: %w", err)
	}

	// Configured secrets must pass the same gate as rotation candidates.
	active, err := keyStore.Active()
	if err != nil {
		keyStore.Close()
		return nil, err
	}
	result := c.KeyValidator().Validate(base64.StdEncoding.EncodeToString(active.Secret))
	if !result.IsValid {
		keyStore.Close()
		return nil, fmt.Errorf("%w: ACTIVE_SECRET: %s",
			cryptoDomain.ErrValidationFailed, strings.Join(result.Issues, "; "))
	}

	attrs := []any{
		slog.String("active_key_id", active.ID()),
		slog.Uint64("active_version", uint64(active.Version())),
		slog.String("strength", string(result.Strength)),
		slog.Bool("kms", keeper != nil),
	}
	if previous := keyStore.Previous(); previous != nil {
		attrs = append(attrs,
			slog.String("previous_key_id", previous.ID()),
			slog.Uint64("previous_version", uint64(previous.Version())),
		)
	}
	c.Logger().Info("key store loaded", attrs...)

	return keyStore, nil
}

func (c *Container) initEngine() (cryptoService.Engine, error) {
	keyStore, err := c.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for engine: %w", err)
	}

	deriver, err := cryptoService.NewPBKDF2Deriver(c.config.IterationCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create key deriver: %w", err)
	}

	engine := cryptoService.NewEngine(
		cryptoService.NewAEADManager(),
		deriver,
		cryptoService.NewHMACSearchIndexer(keyStore),
		keyStore,
	)

	if !c.config.MetricsEnabled {
		return engine, nil
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for engine: %w", err)
	}
	return cryptoService.NewEngineWithMetrics(engine, businessMetrics), nil
}
