package app

import (
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/database"
	recordDomain "github.com/allisson/fieldcrypt/internal/record/domain"
	recordUseCase "github.com/allisson/fieldcrypt/internal/record/usecase"
	rotationRepository "github.com/allisson/fieldcrypt/internal/rotation/repository"
	rotationUseCase "github.com/allisson/fieldcrypt/internal/rotation/usecase"
)

// FieldRegistry returns the encrypted columns parsed from ROTATION_TARGETS.
func (c *Container) FieldRegistry() (*recordDomain.FieldRegistry, error) {
	var err error
	c.fieldRegistryInit.Do(func() {
		c.fieldRegistry, err = recordDomain.ParseTargets(c.config.RotationTargets)
		if err != nil {
			c.initErrors["fieldRegistry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fieldRegistry"]; exists {
		return nil, storedErr
	}
	return c.fieldRegistry, nil
}

// FieldCodec returns the record field codec.
func (c *Container) FieldCodec() (recordUseCase.FieldCodec, error) {
	var err error
	c.fieldCodecInit.Do(func() {
		c.fieldCodec, err = c.initFieldCodec()
		if err != nil {
			c.initErrors["fieldCodec"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fieldCodec"]; exists {
		return nil, storedErr
	}
	return c.fieldCodec, nil
}

// FileCodec returns the file codec.
func (c *Container) FileCodec() (recordUseCase.FileCodec, error) {
	var err error
	c.fileCodecInit.Do(func() {
		c.fileCodec, err = c.initFileCodec()
		if err != nil {
			c.initErrors["fileCodec"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["fileCodec"]; exists {
		return nil, storedErr
	}
	return c.fileCodec, nil
}

// RecordStore returns the record store for the configured database driver.
func (c *Container) RecordStore() (rotationUseCase.RecordStore, error) {
	var err error
	c.recordStoreInit.Do(func() {
		c.recordStore, err = c.initRecordStore()
		if err != nil {
			c.initErrors["recordStore"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recordStore"]; exists {
		return nil, storedErr
	}
	return c.recordStore, nil
}

// KeyMetadataRepository returns the key metadata repository for the configured database driver.
func (c *Container) KeyMetadataRepository() (rotationUseCase.KeyMetadataRepository, error) {
	var err error
	c.keyMetadataInit.Do(func() {
		c.keyMetadataRepo, err = c.initKeyMetadataRepository()
		if err != nil {
			c.initErrors["keyMetadataRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyMetadataRepo"]; exists {
		return nil, storedErr
	}
	return c.keyMetadataRepo, nil
}

// RotationUseCase returns the rotation manager, instrumented when metrics are enabled.
func (c *Container) RotationUseCase() (rotationUseCase.RotationUseCase, error) {
	var err error
	c.rotationUseCaseInit.Do(func() {
		c.rotationUseCase, err = c.initRotationUseCase()
		if err != nil {
			c.initErrors["rotationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rotationUseCase"]; exists {
		return nil, storedErr
	}
	return c.rotationUseCase, nil
}

func (c *Container) initFieldCodec() (recordUseCase.FieldCodec, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for field codec: %w", err)
	}
	registry, err := c.FieldRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get field registry for field codec: %w", err)
	}
	return recordUseCase.NewFieldCodec(engine, registry, c.Logger()), nil
}

func (c *Container) initFileCodec() (recordUseCase.FileCodec, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for file codec: %w", err)
	}
	return recordUseCase.NewFileCodec(engine), nil
}

func (c *Container) initRecordStore() (rotationUseCase.RecordStore, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for record store: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return rotationRepository.NewMySQLRecordStore(db), nil
	case database.DriverPostgres:
		return rotationRepository.NewPostgreSQLRecordStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initKeyMetadataRepository() (rotationUseCase.KeyMetadataRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key metadata repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverMySQL:
		return rotationRepository.NewMySQLKeyMetadataRepository(db), nil
	case database.DriverPostgres:
		return rotationRepository.NewPostgreSQLKeyMetadataRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initRotationUseCase wires the rotation manager and restores persisted key metadata.
func (c *Container) initRotationUseCase() (rotationUseCase.RotationUseCase, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for rotation use case: %w", err)
	}
	keyStore, err := c.KeyStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get key store for rotation use case: %w", err)
	}
	registry, err := c.FieldRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get field registry for rotation use case: %w", err)
	}
	records, err := c.RecordStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get record store for rotation use case: %w", err)
	}
	metadataRepo, err := c.KeyMetadataRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key metadata repository for rotation use case: %w", err)
	}
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	useCase := rotationUseCase.NewRotationUseCase(
		engine,
		keyStore,
		c.KeyValidator(),
		records,
		registry,
		rotationUseCase.Config{
			BatchSize:            c.config.RotationBatchSize,
			BatchTimeout:         c.config.RotationBatchTimeout,
			Workers:              c.config.RotationWorkers,
			BatchRetries:         c.config.RotationBatchRetries,
			MaxRecordsPerSec:     c.config.RotationMaxRecordsPerSec,
			ValidationSampleSize: c.config.RotationValidationSampleSize,
			ContinueOnBatchError: c.config.RotationContinueOnBatchError,
			RotationInterval:     c.config.RotationInterval,
			RetentionPeriod:      c.config.RetentionPeriod,
			UsageCeiling:         c.config.RotationUsageCeiling,
			Algorithm:            cryptoDomain.Algorithm(c.config.CryptoAlgorithm),
		},
		c.Logger(),
		rotationUseCase.WithKeyMetadataRepository(metadataRepo, txManager),
	)

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for rotation use case: %w", err)
		}
		useCase = rotationUseCase.NewRotationUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}
