package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/psr_backend/config"
	"github.com/mmdatafocus/psr_backend/models"
	"github.com/mmdatafocus/psr_backend/utils"
)

func main() {
	project := flag.String("project", "", "Project code (co_no); required unless -all")
	all := flag.Bool("all", false, "Generate for every project")
	dateStr := flag.String("date", "", "Snapshot date (YYYY-MM-DD). Defaults to today.")
	frequency := flag.String("frequency", "MONTHLY", "MONTHLY, BIWEEKLY or WEEKLY")
	actor := flag.String("actor", "system", "Recorded as generated_by")
	flag.Parse()

	if strings.TrimSpace(*project) == "" && !*all {
		fmt.Fprintln(os.Stderr, "-project or -all is required")
		os.Exit(1)
	}
	freq, err := models.ParseSnapshotFrequency(*frequency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	date := time.Now().UTC()
	if strings.TrimSpace(*dateStr) != "" {
		if date, err = utils.ParseDate(*dateStr); err != nil {
			fmt.Fprintf(os.Stderr, "invalid date: %v\n", err)
			os.Exit(1)
		}
	}

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	ctx := context.Background()

	if *all {
		generated, failed, err := models.GenerateAllSnapshots(ctx, date, freq, *actor)
		fmt.Printf("generated=%d failed=%d\n", generated, failed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "last error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	res, err := models.GenerateSnapshotByCoNo(ctx, strings.TrimSpace(*project), date, freq, *actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate failed: %v\n", err)
		os.Exit(1)
	}
	s := res.Snapshot
	fmt.Printf("%s %s %s first=%t actual=%s prognosis=%s margin=%s factor=%s unmatched_timesheets=%d unmatched_po=%d\n",
		*project, s.SnapshotDate.Format("2006-01-02"), s.Frequency, res.FirstSnapshot,
		s.TotalActualCost, s.TotalPrognosisCost, s.Margin, s.Factor,
		res.Diagnostics.Timesheets.Unmatched, res.Diagnostics.PurchaseOrders.Unmatched)
}
