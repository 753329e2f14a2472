// Package deploy provides the site publish command.
package deploy

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkivisto/fieldlog/internal/conf"
	"github.com/tkivisto/fieldlog/internal/deploy"
)

// Command creates the deploy command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Push the built site to its destination",
		Long: `Push the output tree to the deploy target from the configuration: a
local directory mirror, rsync, FTP or SFTP. Run build first; deploying
an unbuilt or empty site is refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := deploy.Run(cmd.Context(), settings)
			if err != nil {
				return err
			}
			fmt.Printf("Deployed %d file(s), %.1f KiB, to %s in %s\n",
				summary.Files,
				float64(summary.Bytes)/1024,
				summary.Target,
				summary.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
