// Package daemon wires every component built in this module into one
// runnable process: persistent storage, the incoming pipeline, derived
// state, the planner, the command dispatcher, and the admin HTTP
// surface. Adapted from Tutu-Engine-tutuengine/internal/daemon's
// Daemon struct + New/NewWithConfig/Serve idiom (construct everything
// eagerly, then start it all under one signal-based graceful shutdown).
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"nrgchamp/homectl/internal/clock"
	"nrgchamp/homectl/internal/command"
	"nrgchamp/homectl/internal/config"
	"nrgchamp/homectl/internal/dispatch"
	"nrgchamp/homectl/internal/eventbus"
	"nrgchamp/homectl/internal/extid"
	"nrgchamp/homectl/internal/homestate"
	"nrgchamp/homectl/internal/httpapi"
	"nrgchamp/homectl/internal/ingest"
	"nrgchamp/homectl/internal/ledger"
	"nrgchamp/homectl/internal/logging"
	"nrgchamp/homectl/internal/mqttbridge"
	"nrgchamp/homectl/internal/planner"
	"nrgchamp/homectl/internal/planning"
	"nrgchamp/homectl/internal/resiliency"
	"nrgchamp/homectl/internal/snapshot"
	"nrgchamp/homectl/internal/statestore"
)

// runnable is the shape every background loop this daemon starts
// shares: ingest runners and the dispatcher alike block until ctx is
// cancelled.
type runnable interface {
	Run(ctx context.Context) error
}

// Daemon holds every wired component for one process lifetime.
type Daemon struct {
	Config config.Config

	log       *slog.Logger
	logCloser io.Closer

	db    *statestore.DB
	store *statestore.Store
	cmds  *command.Store

	bus    *eventbus.Bus
	mirror *eventbus.Mirror

	registry   *homestate.Registry
	derivedIDs []string
	calculator *snapshot.Calculator
	goalConfig []planner.GoalActions[string, planning.API]
	activeGoals []string
	plan       *planner.Planner[string, planning.API]
	dispatcher *dispatch.Dispatcher
	ledger     *ledger.Store

	conn       *mqttbridge.Conn
	homekit    *mqttbridge.Homekit
	zigbee     *mqttbridge.Zigbee
	tasmota    *mqttbridge.Tasmota
	ingestRuns []runnable

	httpHandler *httpapi.Handler
	httpServer  *http.Server

	snapMu   sync.Mutex
	snapshot *snapshot.Snapshot
}

// New constructs every component from cfg but starts nothing; call
// Serve to run it.
func New(cfg config.Config) (*Daemon, error) {
	log, logCloser := logging.Init(cfg.Logging.File)

	db, err := statestore.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	store := statestore.New(db)

	cmds, err := command.Open(store.DB())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open command store: %w", err)
	}

	bus := eventbus.New()

	d := &Daemon{
		Config:    cfg,
		log:       log,
		logCloser: logCloser,
		db:        db,
		store:     store,
		cmds:      cmds,
		bus:       bus,
		ledger:    ledger.NewStore(),
		snapshot:  snapshot.Empty(),
	}

	d.buildDerivedState()
	d.buildPlanning()
	d.plan = planner.New[string, planning.API](log, cmds, d.reflectedChecker, d.ledger)
	d.calculator = &snapshot.Calculator{Registry: d.registry, Store: store, Triggers: store, DerivedIDs: d.derivedIDs}

	if err := d.buildMQTT(); err != nil {
		db.Close()
		return nil, fmt.Errorf("wire mqtt bridges: %w", err)
	}

	d.dispatcher = dispatch.New(log, cmds, bus, d.executors()...)

	if len(cfg.Kafka.Brokers) > 0 {
		d.mirror = eventbus.NewMirror(cfg.Kafka.Brokers, eventbus.KafkaTopics{
			StateChanged: cfg.Kafka.StateChangedTopic,
			StateUpdated: cfg.Kafka.StateUpdatedTopic,
			CommandAdded: cfg.Kafka.CommandAddedTopic,
		}, log)
	}

	d.httpHandler = httpapi.NewHandler(log, store, store, httpapi.LabelConfig{
		HeatingDevices: cfg.Labels.HeatingDevices,
		WaterRooms:     cfg.Labels.WaterRooms,
	})

	return d, nil
}

// executors lists every command.Command executor the dispatcher should
// try, in the order a command should be claimed.
func (d *Daemon) executors() []dispatch.Executor {
	var out []dispatch.Executor
	if d.homekit != nil {
		out = append(out, d.homekit)
	}
	if d.zigbee != nil {
		out = append(out, d.zigbee)
	}
	if d.tasmota != nil {
		out = append(out, d.tasmota)
	}
	return out
}

// buildDerivedState registers every configured zone/mould-room
// calculator against a fresh registry, tracking every registered id so
// the snapshot calculator force-evaluates all of them each tick.
func (d *Daemon) buildDerivedState() {
	reg := homestate.NewRegistry()
	var ids []string

	for _, z := range d.Config.Zones {
		occupancyID := z.Name + "::occupancy"
		presenceIDs := make([]extid.ID, len(z.OccupancyPresenceIDs))
		for i, p := range z.OccupancyPresenceIDs {
			presenceIDs[i] = p.ToExtID()
		}
		homestate.RegisterOccupancyProbability(reg, occupancyID, presenceIDs)
		ids = append(ids, occupancyID)

		windows := make([]homestate.EveningWindow, len(z.EveningWindows))
		for i, w := range z.EveningWindows {
			windows[i] = homestate.EveningWindow{StartMinute: w.StartMinute, EndMinute: w.EndMinute}
		}
		homestate.RegisterScheduledHeatingMode(reg, z.ModeID, homestate.ScheduledHeatingInputs{
			AwayID:               z.AwayID.ToExtID(),
			WindowOpenedID:       z.WindowOpenedID.ToExtID(),
			OccupancyID:          occupancyID,
			ManualOverrideTarget: z.ManualOverrideTarget,
			EveningWindows:       windows,
		})
		ids = append(ids, z.ModeID)
	}

	for _, m := range d.Config.MouldRooms {
		homestate.RegisterDewPoint(reg, m.DewPointID, m.TemperatureID.ToExtID(), m.HumidityID.ToExtID())
		ids = append(ids, m.DewPointID)

		homestate.RegisterRiskOfMould(reg, m.RiskID, m.HumidityID.ToExtID(), m.DewPointID, m.ReferenceDewPointIDs, 3*clock.Hours(1))
		ids = append(ids, m.RiskID)
	}

	d.registry = reg
	d.derivedIDs = ids
}

// buildPlanning turns the same zone/mould-room configuration into the
// goal/action catalog internal/planning drives the planner with.
func (d *Daemon) buildPlanning() {
	var heating []planning.ZoneHeatingConfig
	for _, z := range d.Config.Zones {
		heating = append(heating, planning.ZoneHeatingConfig{
			Zone: z.Name, ModeID: z.ModeID, Device: z.Device,
			ComfortTemp: z.ComfortTemp, EnergySavingTemp: z.EnergySavingTemp, SleepTemp: z.SleepTemp,
		})
	}
	goals := planning.BuildHeatingGoals(heating)

	var ventilation []planning.FanVentilationConfig
	for _, m := range d.Config.MouldRooms {
		ventilation = append(ventilation, planning.FanVentilationConfig{
			Room: m.Name, RiskID: m.RiskID, Device: m.FanDevice, Airflow: m.FanAirflow, Threshold: m.Threshold,
		})
	}
	goals = append(goals, planning.BuildVentilationGoals(ventilation)...)

	d.goalConfig = goals
	d.activeGoals = planning.ActiveGoalNames(goals)
}

// buildMQTT dials one broker connection, shared by every protocol
// bridge configured with a non-empty base/event topic.
func (d *Daemon) buildMQTT() error {
	cfg := d.Config.MQTT
	breakerCfg := resiliency.Config{
		MaxFailures:      cfg.Breaker.MaxFailures,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecs) * time.Second,
		SuccessesToClose: cfg.Breaker.SuccessesToClose,
	}

	conn, err := mqttbridge.Dial(cfg.BrokerAddr, cfg.ClientID, breakerCfg, d.log)
	if err != nil {
		return err
	}
	d.conn = conn

	if cfg.Homekit.Base != "" {
		d.homekit = mqttbridge.NewHomekit(d.log, conn, cfg.Homekit.Base, cfg.Homekit.Devices, triggerServiceSet(cfg.Homekit.TriggerServices))
		if err := d.homekit.Start(); err != nil {
			return fmt.Errorf("start homekit bridge: %w", err)
		}
		d.ingestRuns = append(d.ingestRuns, ingest.NewRunner(d.log, d.homekit, d.store))
	}
	if cfg.Zigbee.Base != "" {
		d.zigbee = mqttbridge.NewZigbee(d.log, conn, cfg.Zigbee.Base, cfg.Zigbee.Channels)
		if err := d.zigbee.Start(); err != nil {
			return fmt.Errorf("start zigbee bridge: %w", err)
		}
		d.ingestRuns = append(d.ingestRuns, ingest.NewRunner(d.log, d.zigbee, d.store))
	}
	if cfg.Tasmota.Base != "" {
		d.tasmota = mqttbridge.NewTasmota(d.log, conn, cfg.Tasmota.Base, cfg.Tasmota.Channels)
		if err := d.tasmota.Start(); err != nil {
			return fmt.Errorf("start tasmota bridge: %w", err)
		}
		d.ingestRuns = append(d.ingestRuns, ingest.NewRunner(d.log, d.tasmota, d.store))
	}
	return nil
}

func triggerServiceSet(names []string) mqttbridge.TriggerServices {
	out := make(mqttbridge.TriggerServices, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Serve starts every background loop and blocks until ctx is cancelled
// or SIGINT/SIGTERM arrives, then shuts everything down within 30s.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, r := range d.ingestRuns {
		go func(r runnable) {
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				d.log.Error("ingest runner stopped", slog.Any("error", err))
			}
		}(r)
	}

	go func() {
		if err := d.dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("dispatcher stopped", slog.Any("error", err))
		}
	}()

	go d.runPlanningLoop(ctx)

	if d.mirror != nil {
		go d.mirror.Run(ctx, d.bus)
	}

	router := mux.NewRouter()
	d.httpHandler.Register(router)
	ledger.NewHandler(d.ledger).Register(router)

	d.httpServer = &http.Server{
		Addr:         d.Config.HTTP.Bind,
		Handler:      handlers.LoggingHandler(os.Stdout, router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if d.conn != nil {
			d.conn.Disconnect()
		}
		if d.mirror != nil {
			_ = d.mirror.Close()
		}
		err := d.httpServer.Shutdown(shutdownCtx)
		_ = d.db.Close()
		_ = d.logCloser.Close()
		cancel()
		shutdownErr <- err
	}()

	d.log.Info("homectl serving", slog.String("bind", d.Config.HTTP.Bind))
	if err := d.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return <-shutdownErr
}

// runPlanningLoop ticks the derived-state calculator and the planner on
// Config.Planner's configured interval until ctx is cancelled.
func (d *Daemon) runPlanningLoop(ctx context.Context) {
	interval := time.Duration(d.Config.Planner.TickIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	planningWindow := time.Duration(d.Config.Planner.SnapshotIntervalSeconds) * time.Second
	if planningWindow <= 0 {
		planningWindow = 8 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx, clock.FromStd(planningWindow))
		}
	}
}

func (d *Daemon) tick(ctx context.Context, planningWindow clock.Duration) {
	d.snapMu.Lock()
	prev := d.snapshot
	d.snapMu.Unlock()

	next, err := d.calculator.Tick(ctx, prev, planningWindow)
	if err != nil {
		d.log.Error("derived state tick failed", slog.Any("error", err))
		return
	}

	d.snapMu.Lock()
	d.snapshot = next
	d.snapMu.Unlock()

	api := homestate.NewContext(d.registry, d.store, clock.Now(), next.Derived, nil)
	d.plan.Tick(ctx, d.activeGoals, d.goalConfig, api)
}
