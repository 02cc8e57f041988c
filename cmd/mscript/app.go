// 文件路径: cmd/mscript/app.go
// 模块说明: 依赖装配。配置、日志、状态库与编排器的构建在此集中完成，
// 各子命令共用。
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/creamcroissant/mscript/internal/bootstrap"
	"github.com/creamcroissant/mscript/internal/cert"
	"github.com/creamcroissant/mscript/internal/config"
	"github.com/creamcroissant/mscript/internal/engine"
	"github.com/creamcroissant/mscript/internal/initsys"
	"github.com/creamcroissant/mscript/internal/orchestrator"
	"github.com/creamcroissant/mscript/internal/repository/sqlite"
	"github.com/creamcroissant/mscript/internal/support/logging"
	"github.com/creamcroissant/mscript/internal/svc"
)

// app 聚合一次命令执行所需的全部依赖。
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB
	store  *sqlite.Store
	orch   *orchestrator.Orchestrator
}

// newApp 装配依赖。调用方负责 Close。
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Options{
		Level:     logging.ParseLevel(cfg.Log.Level),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.StateDB), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	db, err := bootstrap.OpenState(cfg.Paths.StateDB)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	store := sqlite.NewStore(db)

	sys, err := initsys.New(initsys.Config{Type: cfg.Service.InitSystem})
	if err != nil {
		db.Close()
		return nil, err
	}

	certs := cert.NewManager(store.Certificates(), &cert.LegoIssuer{
		DirectoryURL:  cfg.ACME.DirectoryURL,
		ChallengePort: cfg.ACME.ChallengePort,
	}, cert.Options{
		ConfigDir:       cfg.Paths.ConfigDir,
		ObtainTimeout:   cfg.ACME.ObtainTimeout,
		RenewalWindow:   cfg.ACME.RenewalWindow,
		RetryAttempts:   cfg.ACME.RetryAttempts,
		SelfSignedYears: cfg.ACME.SelfSignedYears,
	}, logger)

	ctrl := svc.NewController(sys, svc.Options{
		ServiceName: cfg.Service.Name,
		ConfigDir:   cfg.Paths.ConfigDir,
		BinaryPath:  cfg.Paths.BinaryPath,
		UnitPath:    cfg.Paths.UnitPath,
	}, logger)

	installer := engine.NewInstaller(engine.Options{
		BinaryPath:  cfg.Paths.BinaryPath,
		ReleaseAPI:  cfg.Engine.ReleaseAPI,
		DownloadURL: cfg.Engine.DownloadURL,
		HTTPTimeout: cfg.Engine.HTTPTimeout,
	}, logger)

	orch := orchestrator.New(store, certs, ctrl, installer, logger)

	return &app{cfg: cfg, logger: logger, db: db, store: store, orch: orch}, nil
}

func (a *app) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
