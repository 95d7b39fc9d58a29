// The server component main package for Aitta
package amsserver

import (
	"log"
	"os"

	"github.com/function61/gokit/logex"
	"github.com/function61/gokit/ossignal"
	"github.com/function61/gokit/stopper"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func Entrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the server component",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			rootLogger := logex.StandardLogger()

			workers := stopper.NewManager()
			go func(logger *log.Logger) {
				logex.Levels(logger).Info.Printf(
					"Got %s; stopping",
					<-ossignal.InterruptOrTerminate())

				workers.StopAllWorkersAndWait()
			}(logex.Prefix("main", rootLogger))

			panicIfError(runServer(rootLogger, workers.Stopper()))
		},
	}

	cmd.AddCommand(storageEntrypoint())

	return cmd
}

func storageEntrypoint() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Storage destination administration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "Lists configured storage destinations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			storageConf, err := ReadStorageConfigFromEnv()
			panicIfError(err)

			_, destinations, err := BuildRegistries(storageConf, nil, logex.StandardLogger())
			panicIfError(err)

			tbl := tablewriter.NewWriter(os.Stdout)
			tbl.SetAutoFormatHeaders(false)
			tbl.SetBorder(false)
			tbl.SetHeader([]string{"Name", "Provider"})

			for _, destination := range destinations.All() {
				tbl.Append([]string{destination.Name, destination.ProviderName})
			}

			tbl.Render()
		},
	})

	return cmd
}
