package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/netutil"

	"github.com/ironsheep/boardscan/internal/catalog"
	"github.com/ironsheep/boardscan/internal/config"
	"github.com/ironsheep/boardscan/internal/extract"
	"github.com/ironsheep/boardscan/internal/httpapi"
	"github.com/ironsheep/boardscan/internal/ocr"
	"github.com/ironsheep/boardscan/internal/scan"
	"github.com/ironsheep/boardscan/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const envHelp = `Environment variables (also read from .env):
  BOARDSCAN_ADDR=:5000              HTTP listen address (PORT is honoured)
  BOARDSCAN_CATALOG=board           Built-in catalog (board, card) or YAML path
  BOARDSCAN_ENGINE=gosseract        OCR backend: gosseract or cli
  BOARDSCAN_TESSERACT_CMD=tesseract Tesseract binary for the cli backend
  BOARDSCAN_TESSDATA_PREFIX         Directory holding *.traineddata
  BOARDSCAN_LANG=eng                Default OCR language
  BOARDSCAN_PAYLOAD_FORMAT=join     QR payload format: join or yaml
  BOARDSCAN_QR_LEVEL=L              QR error correction: L, M, Q, H
  BOARDSCAN_QR_BOX_SIZE=10          Pixels per QR module
  BOARDSCAN_QR_BORDER=4             Quiet zone in modules
  BOARDSCAN_QR_FOREGROUND/BACKGROUND Hex colours
  BOARDSCAN_WORKERS=1               Regions read in parallel
  BOARDSCAN_REQUEST_TIMEOUT=60s     Per-request timeout
  BOARDSCAN_MAX_UPLOAD_MB=32        Upload size limit
  BOARDSCAN_MAX_CONNS=32            Concurrent HTTP connections, 0 for no limit
  BOARDSCAN_LOG_LEVEL=debug         Enable debug logging`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the configuration loaded before any subcommand runs.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "boardscan",
		Short: "Read labelled regions of a photo with OCR and re-encode them as a QR code",
		Long: "boardscan - read labelled regions of a photo with OCR and re-encode them as a QR code\n\n" +
			"Without a command, boardscan runs the HTTP API.\n\n" + envHelp,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context())
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("boardscan %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "mcp",
			Short: "Run the MCP server on stdin/stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runMCP(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
		a.newScanCmd(),
		a.newRegionsCmd(),
	)
	return root
}

func (a *app) newScanCmd() *cobra.Command {
	var qrPath, catalogName string
	cmd := &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan one image and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogName == "" {
				catalogName = a.cfg.Catalog
			}
			return a.runScan(cmd.Context(), cmd.OutOrStdout(), args[0], catalogName, qrPath)
		},
	}
	cmd.Flags().StringVar(&qrPath, "qr", "", "write the QR code PNG to this file")
	cmd.Flags().StringVar(&catalogName, "catalog", "", "built-in catalog name or YAML path (default BOARDSCAN_CATALOG)")
	return cmd
}

func (a *app) newRegionsCmd() *cobra.Command {
	var catalogName string
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Print the region catalog as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if catalogName == "" {
				catalogName = a.cfg.Catalog
			}
			return runRegions(cmd.OutOrStdout(), catalogName)
		},
	}
	cmd.Flags().StringVar(&catalogName, "catalog", "", "built-in catalog name or YAML path (default BOARDSCAN_CATALOG)")
	return cmd
}

// setup configures logging and loads the configuration.
func (a *app) setup() error {
	// stdout carries MCP messages and scan output, so logs go to stderr
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	a.cfg = cfg
	if cfg.Debug {
		log.Printf("DEBUG: boardscan v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
		if cfg.EnvFile != "" {
			log.Printf("DEBUG: loaded %s", cfg.EnvFile)
		}
	}
	return nil
}

// newEngine builds the configured OCR backend.
func newEngine(cfg *config.Config) ocr.Engine {
	if cfg.Engine == config.EngineCLI {
		return ocr.NewCLIEngine(cfg.TesseractCmd, cfg.TessdataPrefix)
	}
	return ocr.NewTesseractEngine(cfg.TessdataPrefix)
}

// newScanner wires catalog, engine and encoder together.
func newScanner(cfg *config.Config, catalogName string) (*scan.Scanner, ocr.Engine, error) {
	cat, err := catalog.Resolve(catalogName)
	if err != nil {
		return nil, nil, err
	}
	engine := newEngine(cfg)
	extractor := extract.NewExtractor(engine,
		extract.WithLanguage(cfg.Language),
		extract.WithDebug(cfg.Debug),
	)
	assembler := extract.NewAssembler(extractor, cat, cfg.Workers)
	if cfg.Debug {
		log.Printf("DEBUG: catalog %s (%d regions), engine %s, %d worker(s), payload %s, QR level %s",
			cat.Name(), cat.Len(), engine.Name(), cfg.Workers, cfg.Encoder.Format, cfg.QRLevelName())
	}
	return scan.New(assembler, cfg.Encoder), engine, nil
}

// checkEngine logs a warning when OCR is not usable; the process still
// starts so that health checks can report the problem.
func checkEngine(ctx context.Context, engine ocr.Engine) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	info := ocr.GetInfo(ctx, engine)
	if !info.Available {
		log.Printf("WARN: OCR engine %s not available: %s", info.Backend, info.Error)
		return
	}
	log.Printf("OCR engine %s %s", info.Backend, info.Version)
}

func (a *app) runServe(ctx context.Context) error {
	cfg := a.cfg
	scanner, engine, err := newScanner(cfg, cfg.Catalog)
	if err != nil {
		return err
	}
	checkEngine(ctx, engine)

	handler := httpapi.NewHandler(scanner, engine, httpapi.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		Version:        Version,
		Debug:          cfg.Debug,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	if cfg.MaxConns > 0 {
		// each connection can hold a full OCR pass; cap them
		ln = netutil.LimitListener(ln, cfg.MaxConns)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("BoardScan listening on %s (catalog %s)", ln.Addr(), scanner.Catalog().Name())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) runMCP(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner, engine, err := newScanner(a.cfg, a.cfg.Catalog)
	if err != nil {
		return err
	}
	if a.cfg.Debug {
		checkEngine(ctx, engine)
	}
	srv := server.New(scanner, engine, server.Options{
		Version:     Version,
		ToolTimeout: a.cfg.RequestTimeout,
		In:          in,
		Out:         out,
	})
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) runScan(ctx context.Context, out io.Writer, imagePath, catalogName, qrPath string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}
	scanner, _, err := newScanner(a.cfg, catalogName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	result, err := scanner.Process(ctx, data)
	if err != nil {
		return err
	}

	if qrPath != "" {
		if result.QR == nil {
			log.Printf("WARN: no payload, %s not written", qrPath)
		} else if err := os.WriteFile(qrPath, result.QR.PNG, 0644); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runRegions(out io.Writer, catalogName string) error {
	cat, err := catalog.Resolve(catalogName)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"catalog":  cat.Name(),
		"builtins": catalog.BuiltinNames(),
		"regions":  cat.Regions(),
	})
}
