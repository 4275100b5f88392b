package client

import (
	"github.com/TheMichaelB/obsbackup/internal/config"
	"github.com/TheMichaelB/obsbackup/internal/crypto"
	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/models"
	"github.com/TheMichaelB/obsbackup/internal/services/backup"
	"github.com/TheMichaelB/obsbackup/internal/services/restore"
	"github.com/TheMichaelB/obsbackup/internal/state"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

// Client provides the high-level API for obsbackup operations.
type Client struct {
	Codec   *crypto.Codec
	Backup  *backup.Service
	Restore *restore.Service
	History HistoryManager

	config  *config.Config
	logger  *events.Logger
	storage storage.BlobStore
	catalog state.Store
}

// HistoryManager provides catalog queries.
type HistoryManager interface {
	List(filter models.RecordFilter) ([]*models.BackupRecord, error)
	Get(id string) (*models.BackupRecord, error)
	Forget(id string) error
}

// New creates a new obsbackup client.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	// Create blob store
	blobStore := storage.NewLocalStore(logger)
	blobStore.SetMaxFileSize(cfg.Storage.MaxFileSize)

	// Create codec
	codec := crypto.NewCodec(blobStore, logger,
		crypto.WithUnsealOverwrite(cfg.Restore.Overwrite),
	)

	// Create catalog
	catalog, err := state.New(cfg.State, logger)
	if err != nil {
		return nil, err
	}

	// Create services
	backupService := backup.NewService(blobStore, codec, catalog, &cfg.Backup, logger)
	restoreService := restore.NewService(blobStore, codec, catalog, &cfg.Restore, logger)

	client := &Client{
		Codec:   codec,
		Backup:  backupService,
		Restore: restoreService,
		History: &historyManager{store: catalog},
		config:  cfg,
		logger:  logger,
		storage: blobStore,
		catalog: catalog,
	}

	return client, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() *config.Config {
	return c.config
}

// Stat returns metadata for a file produced by the client.
func (c *Client) Stat(path string) (storage.FileInfo, error) {
	return c.storage.Stat(path)
}

// Close releases the catalog.
func (c *Client) Close() error {
	return c.catalog.Close()
}

// historyManager implements HistoryManager interface.
type historyManager struct {
	store state.Store
}

func (hm *historyManager) List(filter models.RecordFilter) ([]*models.BackupRecord, error) {
	return hm.store.List(filter)
}

func (hm *historyManager) Get(id string) (*models.BackupRecord, error) {
	return hm.store.Get(id)
}

func (hm *historyManager) Forget(id string) error {
	return hm.store.Delete(id)
}
