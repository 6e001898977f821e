package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/DataDog/pulsar-metrics/internal/collector"
	"github.com/DataDog/pulsar-metrics/internal/runstats"
	"github.com/DataDog/pulsar-metrics/pulsaradmin"
	"github.com/DataDog/pulsar-metrics/topicmetrics"
	"github.com/DataDog/pulsar-metrics/topicmetrics/azure"
	"github.com/DataDog/pulsar-metrics/topicmetrics/datadog"

	"github.com/spf13/cobra"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect topic stats and submit them as custom metrics",
	Long: `run fetches stats for every topic referenced by the configured metric
kinds, then submits one envelope per kind to Azure Monitor. A kind that
references a topic whose stats couldn't be fetched isn't submitted. Failures
are logged and the command exits 0 unless --strict is set.`,
	Run: run,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("strict", false, "Exit 1 if no metric kind was submitted")
	runCmd.Flags().Bool("dry-run", false, "Print envelopes instead of submitting them")
	runCmd.Flags().Bool("check-broker-version", false, "Warn if the broker predates the v2 admin API")
	runCmd.Flags().String("datadog-api-key", "", "If set, also post metrics to Datadog")
	runCmd.Flags().String("datadog-app-key", "", "Datadog app key")
	runCmd.Flags().String("datadog-tags", "", "Comma-delimited list of tags added to Datadog metrics")
	runCmd.Flags().String("pushgateway-url", "", "If set, push run statistics to this Prometheus Pushgateway")
}

// runOptions holds the run subcommand's own flags.
type runOptions struct {
	strict       bool
	dryRun       bool
	checkVersion bool
	ddAPIKey     string
	ddAppKey     string
	ddTags       string
	gateway      string
	out          io.Writer
}

func runOptionsFromCmd(cmd *cobra.Command) (o runOptions) {
	o.strict, _ = cmd.Flags().GetBool("strict")
	o.dryRun, _ = cmd.Flags().GetBool("dry-run")
	o.checkVersion, _ = cmd.Flags().GetBool("check-broker-version")
	o.ddAPIKey, _ = cmd.Flags().GetString("datadog-api-key")
	o.ddAppKey, _ = cmd.Flags().GetString("datadog-app-key")
	o.ddTags, _ = cmd.Flags().GetString("datadog-tags")
	o.gateway, _ = cmd.Flags().GetString("pushgateway-url")
	o.out = os.Stdout
	return o
}

func run(cmd *cobra.Command, _ []string) {
	code, err := runWith(paramsFromCmd(cmd), runOptionsFromCmd(cmd))
	exitOnErr(err)

	if code != 0 {
		os.Exit(code)
	}
}

// runWith performs the run and returns the exit code. Configuration errors
// are returned after any started tracer or token state has been shut down.
func runWith(p params, o runOptions) (int, error) {
	if err := p.validate(); err != nil {
		return 1, err
	}

	if p.trace {
		tracer.Start(tracer.WithService("pulsarmetrics"), tracer.WithServiceVersion(version))
		defer tracer.Stop()
	}

	kinds, err := p.kinds()
	if err != nil {
		return 1, err
	}

	admin, err := pulsaradmin.NewClient(pulsaradmin.Config{
		URL:        p.adminURL,
		Namespace:  p.namespace,
		HTTPClient: p.httpClient(),
	})
	if err != nil {
		return 1, err
	}

	ctx := context.Background()
	if o.checkVersion {
		checkBrokerVersion(ctx, admin)
	}

	var handler topicmetrics.Handler
	var az *azure.Handler

	if o.dryRun {
		handler = &printHandler{w: o.out}
	} else {
		ts, err := initTokenState(p)
		if err != nil {
			return 1, err
		}
		defer ts.close()

		az, err = azure.NewHandler(p.azureConfig(), ts.store, nil, ts.lock)
		if err != nil {
			return 1, err
		}
		handler = az
	}

	var mirrors []topicmetrics.Handler
	if o.ddAPIKey != "" && !o.dryRun {
		dd, err := datadog.NewHandler(&datadog.Config{
			APIKey: o.ddAPIKey,
			AppKey: o.ddAppKey,
			Tags:   splitTags(o.ddTags),
		})
		if err != nil {
			return 1, err
		}
		mirrors = append(mirrors, dd)
	}

	c, err := collector.New(collector.Config{
		Kinds:   kinds,
		Fetcher: admin,
		Handler: handler,
		Mirrors: mirrors,
	})
	if err != nil {
		return 1, err
	}

	start := time.Now()
	report := c.Run(ctx)
	logReport(report)

	if o.gateway != "" {
		var azStats azure.Stats
		if az != nil {
			azStats = az.Stats()
		}

		stats := runstats.New()
		stats.Observe(report, azStats, time.Since(start), time.Now())
		if err := stats.Push(ctx, o.gateway, "pulsarmetrics"); err != nil {
			log.Printf("Error pushing run statistics: %s\n", err)
		}
	}

	return exitCode(report, o.strict), nil
}

// checkBrokerVersion warns if the broker predates the v2 admin API. Failing
// to read the version isn't fatal.
func checkBrokerVersion(ctx context.Context, admin *pulsaradmin.Client) {
	v, err := admin.BrokerVersion(ctx)
	if err != nil {
		log.Printf("Unable to determine broker version: %s\n", err)
		return
	}

	if v.LessThan(pulsaradmin.MinBrokerVersion) {
		log.Printf("Broker version %s is older than %s; stats requests may fail\n", v, pulsaradmin.MinBrokerVersion)
	}
}

// logReport logs the outcome of a run.
func logReport(r *collector.Report) {
	for _, err := range r.FetchErrors {
		log.Printf("Failed to fetch topic stats. Is Pulsar running and accepting requests? %s\n", err)
	}

	if r.Skipped {
		log.Println("Not sending metrics, no topic stats were fetched")
		return
	}

	for _, k := range r.Kinds {
		switch k.Outcome {
		case collector.Submitted:
			log.Printf("Metric %q sent (%d series)\n", k.Kind, k.Series)
		default:
			log.Printf("Metric %q not sent [%s]: %s\n", k.Kind, k.Outcome, k.Err)
		}

		for _, err := range k.MirrorErrors {
			log.Printf("Metric %q mirror error: %s\n", k.Kind, err)
		}
	}

	log.Printf("Pulsar metrics sent: %d/%d kinds\n", r.Submitted(), len(r.Kinds))
}

// exitCode returns the process exit code for a run. Runs always succeed
// unless strict is set and nothing was submitted.
func exitCode(r *collector.Report, strict bool) int {
	if strict && !r.OK() {
		return 1
	}

	return 0
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}

// printHandler writes envelopes as indented JSON.
type printHandler struct {
	w io.Writer
}

func (h *printHandler) PostMetric(_ context.Context, e *topicmetrics.Envelope) error {
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(h.w, "%s\n", b)
	return err
}

func exitOnErr(e error) {
	if e != nil {
		fmt.Println(e)
		os.Exit(1)
	}
}
