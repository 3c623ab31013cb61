package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/attachsync/internal/attachservice"
	"github.com/starford/attachsync/internal/capture"
	"github.com/starford/attachsync/internal/host"
	"github.com/starford/attachsync/internal/journal"
	"github.com/starford/attachsync/internal/notice"
	"github.com/starford/attachsync/internal/pathtmpl"
	"github.com/starford/attachsync/internal/rename"
	"github.com/starford/attachsync/internal/sse"
	"github.com/starford/attachsync/internal/storage"
	"github.com/starford/attachsync/internal/watcher"
)

// noticeHistory is how many recent notices a new SSE client is replayed.
const noticeHistory = 32

// Engine is the wired attachment engine for one vault.
type Engine struct {
	Store   *storage.FS
	Host    *host.AppConfig
	Broker  *sse.Broker
	Journal *journal.DB
	Service *attachservice.Service

	logger   *slog.Logger
	snapshot host.Snapshot
}

// Open wires every component for the vault in cfg. The host attachment folder
// is snapshotted and restored by Close.
func Open(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	appCfg, err := host.LoadAppConfig(store.Root())
	if err != nil {
		return nil, fmt.Errorf("load vault settings: %w", err)
	}
	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("init journal: %w", err)
	}

	a := cfg.Attachments
	broker := sse.NewBroker(noticeHistory)
	notifier := notice.Multi{notice.Log{Logger: logger}, broker}
	resolver := pathtmpl.NewResolver(a.Settings, appCfg)
	workspace := host.NewFileWorkspace(store)

	svc := attachservice.New(attachservice.Deps{
		Store:     store,
		Resolver:  resolver,
		Workspace: workspace,
		Coordinator: rename.New(store, resolver, notifier, rename.Options{
			AutoRenameFolder: a.AutoRenameFolder,
			UpdateLinks:      a.UpdateLinksOnRename,
		}, logger),
		Capture: capture.New(capture.Deps{
			Store:     store,
			Resolver:  resolver,
			Workspace: workspace,
			Linker:    host.NewLinker(a.LinkStyle),
			Config:    appCfg,
			Saver:     host.NewSaver(store, appCfg),
			Notifier:  notifier,
			Logger:    logger,
			Window:    a.CaptureWindow,
		}),
		Journal: db,
		Events:  broker,
		Logger:  logger,
	})

	logger.Info("engine: opened",
		slog.String("vault", store.Root()),
		slog.String("root_mode", string(a.Mode)),
		slog.String("path_template", a.Path),
		slog.String("host_attachment_folder", appCfg.AttachmentFolder()))

	return &Engine{
		Store:    store,
		Host:     appCfg,
		Broker:   broker,
		Journal:  db,
		Service:  svc,
		logger:   logger,
		snapshot: host.Backup(appCfg),
	}, nil
}

// Watch feeds vault changes into the service until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context) error {
	return watcher.New(e.Store, e.Service, e.logger).Run(ctx)
}

// Close restores the host attachment folder and releases resources.
func (e *Engine) Close() error {
	e.snapshot.Restore()
	e.Broker.Close()
	if err := e.Journal.Close(); err != nil {
		return fmt.Errorf("close journal: %w", err)
	}
	e.logger.Info("engine: closed")
	return nil
}
