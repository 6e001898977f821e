package commands

import (
	"context"
	"log"

	"github.com/DataDog/pulsar-metrics/topicmetrics/azure"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a new access token and store it",
	Long: `token requests a fresh access token with the client credentials grant
and writes it to the configured token store, replacing any cached token.`,
	Run: token,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func token(cmd *cobra.Command, _ []string) {
	exitOnErr(issueToken(context.Background(), paramsFromCmd(cmd)))
}

// issueToken replaces the stored token while holding the refresh lock.
func issueToken(ctx context.Context, p params) error {
	if err := p.validate(); err != nil {
		return err
	}

	ts, err := initTokenState(p)
	if err != nil {
		return err
	}
	defer ts.close()

	issuer, err := azure.NewClientCredentialsIssuer(p.azureConfig())
	if err != nil {
		return err
	}

	if err := ts.lock.Lock(ctx); err != nil {
		return err
	}
	defer ts.lock.Unlock(ctx)

	t, err := issuer.Issue(ctx)
	if err != nil {
		return err
	}

	log.Println("Saving access token")
	if err := ts.store.Write(t); err != nil {
		return err
	}
	log.Println("Access token saved")

	return nil
}
