package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/DataDog/pulsar-metrics/topicmetrics/azure"

	"github.com/jamiealquiza/envy"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulsarmetrics",
	Short: "Forward Pulsar topic stats to Azure Monitor",
	Long: `pulsarmetrics reads per-topic stats from the Pulsar admin API and
submits the configured metrics to Azure Monitor as custom metrics. Each
invocation performs a single collect-and-send cycle. All flags may also be set
as PULSARMETRICS_<FLAG> environment variables (e.g. PULSARMETRICS_CLIENT_SECRET).`,
}

// Execute runs the root command.
func Execute() {
	envy.ParseCobra(rootCmd, envy.CobraConfig{Prefix: "PULSARMETRICS", Persistent: true, Recursive: false})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Azure.
	rootCmd.PersistentFlags().String("tenant-id", "", "Azure AD tenant ID")
	rootCmd.PersistentFlags().String("client-id", "", "Service principal client ID")
	rootCmd.PersistentFlags().String("client-secret", "", "Service principal client secret")
	rootCmd.PersistentFlags().String("resource-id", "", "Azure resource ID the custom metrics are reported for")
	rootCmd.PersistentFlags().String("region", azure.DefaultRegion, "Azure region of the resource (must match the resource ID)")
	rootCmd.PersistentFlags().Int("max-attempts", azure.DefaultMaxAttempts, "Maximum metric submission attempts per metric")
	// Pulsar.
	rootCmd.PersistentFlags().String("admin-url", "http://localhost:8080", "Pulsar admin API base URL")
	rootCmd.PersistentFlags().String("namespace", "", "Pulsar tenant/namespace of the monitored topics")
	rootCmd.PersistentFlags().String("topics-file", "", "YAML file of metric kinds and topics (defaults to the built-in lists)")
	// Token storage.
	rootCmd.PersistentFlags().String("token-store", "file", "Access token store: [file, zookeeper]")
	rootCmd.PersistentFlags().String("token-path", "access_token.txt", "Access token file path (token-store=file)")
	rootCmd.PersistentFlags().String("lock", "none", "Token refresh lock for concurrent instances: [none, file, zookeeper]")
	rootCmd.PersistentFlags().Duration("lock-timeout", 30*time.Second, "Maximum wait for the token refresh lock")
	rootCmd.PersistentFlags().String("zk-addr", "localhost:2181", "ZooKeeper connect string (token-store=zookeeper or lock=zookeeper)")
	rootCmd.PersistentFlags().String("zk-prefix", "pulsarmetrics", "ZooKeeper namespace prefix for the token and lock znodes")
	// Misc.
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "Timeout for each HTTP request")
	rootCmd.PersistentFlags().Bool("trace", false, "Enable Datadog APM tracing of outbound requests")
}
