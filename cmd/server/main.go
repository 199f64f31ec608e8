package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rauldose/node-red-new-sub000/internal/api"
	"github.com/rauldose/node-red-new-sub000/internal/catalog"
	"github.com/rauldose/node-red-new-sub000/internal/config"
	"github.com/rauldose/node-red-new-sub000/internal/flowctx"
	"github.com/rauldose/node-red-new-sub000/internal/flowmanager"
	"github.com/rauldose/node-red-new-sub000/internal/hooks"
	"github.com/rauldose/node-red-new-sub000/internal/i18n"
	"github.com/rauldose/node-red-new-sub000/internal/mqttconfig"
	"github.com/rauldose/node-red-new-sub000/internal/node"
	"github.com/rauldose/node-red-new-sub000/internal/registry"
	"github.com/rauldose/node-red-new-sub000/internal/rtevents"
	"github.com/rauldose/node-red-new-sub000/internal/rtlog"
	"github.com/rauldose/node-red-new-sub000/internal/rtmetrics"
	"github.com/rauldose/node-red-new-sub000/internal/settings"
	"github.com/rauldose/node-red-new-sub000/internal/storage"
)

// managerLinker adapts flowmanager.Manager's GetNode (which returns
// the narrower flow.Closer) to catalog.Linker's node.Receiver, the
// shape link-in/link-call targets need to deliver a message.
type managerLinker struct {
	mgr *flowmanager.Manager
}

func (l *managerLinker) GetNode(id string) (node.Receiver, bool) {
	closer := l.mgr.GetNode(id)
	if closer == nil {
		return nil, false
	}
	recv, ok := closer.(node.Receiver)
	return recv, ok
}

func main() {
	log.Println("Starting flowrt runtime")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	promReg := prometheus.NewRegistry()
	metrics := rtmetrics.New(promReg, "flowrt")

	rtLog := rtlog.New(
		rtlog.NewLogrusHandler(rtlog.ParseLevel(cfg.Logging.Level), cfg.Logging.MetricsOn, cfg.Logging.AuditOn),
		rtlog.NewMetricsHandler(promReg, "flowrt"),
	)
	rtLog.Info("configuration loaded", rtlog.WithType("startup"))

	events := rtevents.New()

	hookChains := hooks.New()
	hookChains.SetHaltObserver(func(id hooks.ID) {
		metrics.HookHalted(string(id))
	})

	flowStorage := storage.NewFlowStorage(cfg.Storage.DataDir)
	settingsStorage := storage.NewSettingsStorage(cfg.Storage.DataDir)

	settingsStore := settings.New(settingsStorage, nil)
	if err := settingsStore.Load(); err != nil {
		rtLog.Warn("failed to load persisted settings, starting with empty global layer", rtlog.WithType("startup"))
	}

	reg := registry.New(events)
	flowCtx := flowctx.New()
	mqttRegistry := mqttconfig.NewRegistry(rtLog)
	linkCalls := catalog.NewLinkCallRegistry()

	mgr := flowmanager.New(reg, flowStorage, events, rtLog, hookChains, catalog.RoleOf)
	mgr.SetMetrics(metrics)
	mgr.SetEnvStore(flowCtx.SetFlow)

	catalog.Register(reg, catalog.Deps{
		Hooks:     hookChains,
		Log:       rtLog,
		Events:    events,
		FlowCtx:   flowCtx,
		MQTT:      mqttRegistry,
		Linker:    &managerLinker{mgr: mgr},
		LinkCalls: linkCalls,
	})

	wireNodeHelp(reg, cfg.Runtime.DefaultLang)

	ctx := context.Background()
	initialConfig, err := flowStorage.GetFlows()
	if err != nil {
		rtLog.Warn("failed to load persisted flows, starting with an empty deployment", rtlog.WithType("startup"))
	} else if len(initialConfig) > 0 {
		if err := mgr.SetFlows(ctx, initialConfig, flowmanager.Full, true); err != nil {
			rtLog.Error("failed to deploy persisted flows: "+err.Error(), rtlog.WithType("startup"))
		}
	}

	router := api.NewRouter(mgr, reg, events, rtLog)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		rtLog.Info("server starting on "+server.Addr, rtlog.WithType("startup"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	rtLog.Info("shutting down", rtlog.WithType("shutdown"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.SetFlows(shutdownCtx, nil, flowmanager.Full, false); err != nil {
		rtLog.Error("error stopping active flows: "+err.Error(), rtlog.WithType("shutdown"))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		rtLog.Error("server forced to shutdown: "+err.Error(), rtlog.WithType("shutdown"))
	}

	rtLog.Info("server exited", rtlog.WithType("shutdown"))
}

// wireNodeHelp populates every registered NodeSet's localized help
// text from an i18n catalog, the non-invasive seam
// internal/registry.GetAllNodeConfigs already reads (NodeSet.Help) but
// that nothing in internal/catalog writes — kept as an external
// wiring step here rather than threading i18n through every node
// constructor.
func wireNodeHelp(reg *registry.Registry, lang string) {
	cat := i18n.New("en-US")
	cat.Load("en-US", map[string]string{
		"help.flowrt/core":         "Core message-shaping nodes: inject, switch, change, split, join, plus the catch, status and complete side-channel nodes.",
		"help.flowrt/flow-control": "Timing nodes: delay and trigger.",
		"help.flowrt/file":         "Filesystem nodes: read, write, and watch.",
		"help.flowrt/mqtt":         "MQTT broker config node plus in/out nodes.",
		"help.flowrt/link":         "Link in/out/call nodes for cross-flow wiring.",
	})
	loader := &i18n.NodeLoader{Catalog: cat}

	for _, mod := range reg.GetModuleList() {
		for _, set := range mod.Nodes {
			help, ok := loader.GetNodeHelp(set.ID(), lang)
			if !ok {
				continue
			}
			if set.Help == nil {
				set.Help = make(map[string]string)
			}
			set.Help[lang] = help
		}
	}
}
