package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"deploy_networks/internal/app/port"
	"deploy_networks/internal/app/provider"
	"deploy_networks/internal/app/service"
	"deploy_networks/internal/domain/entity"
	"deploy_networks/internal/infrastructure/configloader"
	"deploy_networks/internal/infrastructure/credentialloader"
	"deploy_networks/internal/infrastructure/network/client"
	networkdefinition "deploy_networks/internal/infrastructure/network/definition"
	"deploy_networks/internal/infrastructure/nodeprobe"
	"deploy_networks/internal/infrastructure/restapi"
	"deploy_networks/internal/infrastructure/secretscan"
	"deploy_networks/internal/pkg/logger"
	"deploy_networks/internal/pkg/metrics"
	"deploy_networks/internal/pkg/utils"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var signalNotifyContext = signal.NotifyContext

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// application holds everything a command needs, built once per invocation.
type application struct {
	cfg        *configloader.Config
	zapLogger  *zap.Logger
	logger     port.Logger
	metrics    *metrics.Metrics
	profiles   *networkdefinition.ProfileProvider
	transports *client.EVMTransportFactory
	targets    *service.DeployTargetServiceImpl
}

func run(args []string, stdout, stderr io.Writer) int {
	kingpinApp := kingpin.New("deploy_networks", "Network profiles for contract deployment")
	kingpinApp.UsageWriter(stderr)
	kingpinApp.ErrorWriter(stderr)

	configFile := kingpinApp.Flag("config", "Path to YAML configuration file").Envar("DEPLOY_NETWORKS_CONFIG").String()
	networksDir := kingpinApp.Flag("networks-dir", "Directory of <name>.json network fragments").String()
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	listCmd := kingpinApp.Command("list", "List configured networks")
	showCmd := kingpinApp.Command("show", "Print one network profile as YAML")
	showName := showCmd.Arg("name", "Network name").Required().String()
	endpointCmd := kingpinApp.Command("endpoint", "Print the RPC endpoint of a network")
	endpointName := endpointCmd.Arg("name", "Network name").Required().String()
	checkCmd := kingpinApp.Command("check", "Validate networks, resolve credentials and probe nodes")
	checkNames := checkCmd.Arg("names", "Networks to check (default: all)").Strings()
	balanceCmd := kingpinApp.Command("balance", "Print the native balance of a network's sender")
	balanceName := balanceCmd.Arg("name", "Network name").Required().String()
	snapshotCmd := kingpinApp.Command("snapshot", "Print the effective networks and test runner options as YAML")
	scanCmd := kingpinApp.Command("scan", "Scan files for private key literals")
	scanPaths := scanCmd.Arg("paths", "Files or directories to scan").Required().Strings()
	serveCmd := kingpinApp.Command("serve", "Serve the read-only HTTP API")

	command, err := kingpinApp.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitUsage
	}

	// Scanning works without any configuration, so a leaked key cannot stop it.
	if command == scanCmd.FullCommand() {
		return runScan(*scanPaths, stdout, stderr)
	}

	opts := configloader.Options{ConfigFile: *configFile, LogLevel: logLevel}
	if *networksDir != "" {
		opts.NetworksDir = networksDir
	}
	app, err := newApplication(opts)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	defer app.close()

	switch command {
	case listCmd.FullCommand():
		return app.list(stdout)
	case showCmd.FullCommand():
		return app.show(*showName, stdout, stderr)
	case endpointCmd.FullCommand():
		return app.endpoint(*endpointName, stdout, stderr)
	case checkCmd.FullCommand():
		return app.check(*checkNames, stdout)
	case balanceCmd.FullCommand():
		return app.balance(*balanceName, stdout, stderr)
	case snapshotCmd.FullCommand():
		return app.snapshot(stdout, stderr)
	case serveCmd.FullCommand():
		return app.serve(stderr)
	}
	return exitUsage
}

func newApplication(opts configloader.Options) (*application, error) {
	cfg, err := configloader.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	zapLogger, slogLogger, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewSlogAdapter(slogLogger)
	log.Debug("Configuration loaded", "config", opts.ConfigFile, "networks", len(cfg.Networks))

	m := metrics.New()
	profiles := networkdefinition.NewProfileProvider(cfg.Networks, log)
	credentials := provider.NewCredentialProvider(
		credentialloader.NewLoader(log),
		credentialloader.VerifySender,
		log,
		m,
	)
	transports := client.NewEVMTransportFactory(cfg, log, m)
	prober := nodeprobe.NewProber(time.Duration(cfg.Performance.RPCCallTimeoutSeconds)*time.Second, zapLogger)

	return &application{
		cfg:        cfg,
		zapLogger:  zapLogger,
		logger:     log,
		metrics:    m,
		profiles:   profiles,
		transports: transports,
		targets: service.NewDeployTargetService(
			profiles, credentials, transports, prober, log, m, cfg.Performance.MaxConcurrentRoutines,
		),
	}, nil
}

func (a *application) close() {
	a.transports.Close()
	_ = a.zapLogger.Sync()
}

func (a *application) list(stdout io.Writer) int {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENDPOINT\tNETWORK ID\tSIGNER")
	for _, p := range a.profiles.GetAllProfiles() {
		signer := "-"
		if p.RequiresCredential() {
			signer = credentialloader.CredentialEnvName(p)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.Name, p.Endpoint(), p.NetworkID, signer)
	}
	if err := w.Flush(); err != nil {
		return exitFailure
	}
	return exitOK
}

func (a *application) show(name string, stdout, stderr io.Writer) int {
	profile, err := a.profiles.GetProfile(name)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	out, err := yaml.Marshal(map[string]entity.NetworkProfile{profile.Name: profile})
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: failed to encode %s: %v\n", name, err)
		return exitFailure
	}
	_, _ = stdout.Write(out)
	return exitOK
}

func (a *application) endpoint(name string, stdout, stderr io.Writer) int {
	profile, err := a.profiles.GetProfile(name)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, profile.Endpoint())
	return exitOK
}

func (a *application) check(names []string, stdout io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), a.checkTimeout())
	defer cancel()

	code := exitOK
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, r := range a.targets.Check(ctx, names) {
		status := "ok"
		detail := r.Endpoint
		if r.Probe != nil {
			detail = fmt.Sprintf("%s (network %d, chain %d, %s)", r.Endpoint, r.Probe.NetworkID, r.Probe.ChainID, r.Probe.Latency.Round(time.Millisecond))
		}
		if !r.OK() {
			status = "FAIL"
			detail = r.Err.Error()
			code = exitFailure
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, detail)
	}
	_ = w.Flush()
	return code
}

func (a *application) balance(name string, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(context.Background(), a.checkTimeout())
	defer cancel()

	transport, err := a.targets.Connect(ctx, name)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	balance, err := transport.Balance(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "%s %s\n", transport.From().Hex(), utils.FormatBigInt(balance, utils.NativeDecimals))
	return exitOK
}

func (a *application) snapshot(stdout, stderr io.Writer) int {
	out, err := a.cfg.Snapshot()
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	_, _ = stdout.Write(out)
	return exitOK
}

func (a *application) serve(stderr io.Writer) int {
	gin.SetMode(gin.ReleaseMode)
	if a.cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	}

	handler := restapi.NewNetworkHandler(a.profiles, a.targets, a.cfg.TestRunner)
	router := restapi.SetupRouter(handler, a.metrics, a.logger)

	addr := a.cfg.Server.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	ctx, stop := signalNotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info(fmt.Sprintf("Server starting on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			fmt.Fprintf(stderr, "deploy_networks: server failed: %v\n", err)
			return exitFailure
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server forced to shutdown", "error", err)
		return exitFailure
	}
	a.logger.Info("Server exiting")
	return exitOK
}

func (a *application) checkTimeout() time.Duration {
	perf := a.cfg.Performance
	return time.Duration(perf.DialTimeoutSeconds+2*perf.RPCCallTimeoutSeconds) * time.Second
}

func runScan(paths []string, stdout, stderr io.Writer) int {
	findings, err := secretscan.ScanFiles(paths)
	if err != nil {
		fmt.Fprintf(stderr, "deploy_networks: %v\n", err)
		return exitFailure
	}
	for _, f := range findings {
		fmt.Fprintln(stdout, f.String())
	}
	if len(findings) > 0 {
		fmt.Fprintf(stderr, "deploy_networks: %d private key literal(s) found\n", len(findings))
		return exitFailure
	}
	return exitOK
}
