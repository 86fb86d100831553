// 终端报表：adm-report <地区代码>，打印地区汇总与城市明细表
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"admission-map/internal/config"
	"admission-map/internal/dataset"
	"admission-map/internal/logger"
	"admission-map/internal/stats"
	"admission-map/internal/store"
	"admission-map/internal/utils"
	"admission-map/internal/view"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: adm-report <region-code>")
		os.Exit(2)
	}
	code, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad region code %q\n", os.Args[1])
		os.Exit(2)
	}
	cfg := config.FromEnv()
	ds, err := open(cfg)
	if err != nil {
		l.Error("dataset_load_error", "err", err)
		os.Exit(1)
	}
	if err := report(os.Stdout, stats.New(ds), cfg.Schema.RegionName, code); err != nil {
		var nf *stats.NotFoundError
		if errors.As(err, &nf) {
			fmt.Fprintln(os.Stderr, "no data")
			os.Exit(1)
		}
		l.Error("report_error", "err", err)
		os.Exit(1)
	}
}

func open(cfg config.Config) (*dataset.Store, error) {
	if cfg.DataSource != "postgres" {
		return dataset.Open(cfg.RegionsCSV, cfg.CitiesCSV, cfg.Schema)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.AttachDB(db).OpenDataset(ctx, cfg.Schema)
}

func report(w io.Writer, svc *stats.Service, nameColumn string, code int) error {
	s, err := svc.RegionSummary(code)
	if err != nil {
		return err
	}
	card := view.RegionCard(s, nameColumn)
	fmt.Fprintf(w, "%s (%d)\n", card.Title, card.Code)

	tw := newTable(w)
	tw.SetHeader([]string{view.IndicatorHeader, view.ValueHeader})
	for _, r := range card.Rows {
		tw.Append([]string{r.Name, r.Value.String()})
	}
	tw.Render()

	fmt.Fprintf(w, "\n%s\n", view.CitiesHeading)
	rows := svc.CityStats(code)
	if len(rows) == 0 {
		fmt.Fprintln(w, "—")
		return nil
	}
	tw = newTable(w)
	tw.SetHeader(svc.CityColumns())
	for _, r := range rows {
		line := make([]string, len(r.Fields))
		for i, f := range r.Fields {
			line[i] = f.Value.String()
		}
		tw.Append(line)
	}
	tw.Render()
	return nil
}

func newTable(w io.Writer) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	return tw
}
