package main

import (
	"chat-match/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	ctx := context.Background()
	sessions := repositories.NewSessionRepository(db, slog.Default(), time.Hour)
	all, err := sessions.List(ctx)
	if err != nil {
		log.Fatal(err)
	}
	stats, err := sessions.Stats(ctx)
	if err != nil {
		log.Fatal(err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Connection", "Status", "Partner", "Created", "Last transition"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, s := range all {
		partner := s.PartnerID
		if partner == "" {
			partner = "-"
		}
		table.Append([]string{
			s.ConnectionID,
			s.Status.String(),
			partner,
			s.CreatedAt.Format(time.TimeOnly),
			s.LastTransitionAt.Format(time.TimeOnly),
		})
	}
	table.Render()
	fmt.Printf("\n%d waiting, %d chatting\n", stats.Waiting, stats.Chatting)
}
