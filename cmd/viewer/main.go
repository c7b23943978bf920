package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"alumnet/observability"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config of the ops console. Polls the relay's admin endpoint and renders
// the counters as a table, newest poll last.
type Config struct {
	StatsURL     string        `envconfig:"STATS_URL" default:"http://localhost:8080/stats"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	Colours      bool          `envconfig:"VIEWER_COLOURS" default:"true"`
	Once         bool          `envconfig:"VIEWER_ONCE" default:"false"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}

	for {
		snapshot, err := fetchSnapshot(client, cfg.StatsURL)
		if err != nil {
			log.Printf("Relay unreachable: %v", err)
		} else {
			render(snapshot, cfg.Colours)
		}

		if cfg.Once {
			return
		}
		time.Sleep(cfg.PollInterval)
	}
}

func fetchSnapshot(client *http.Client, url string) (observability.Snapshot, error) {
	var snapshot observability.Snapshot
	resp, err := client.Get(url)
	if err != nil {
		return snapshot, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snapshot, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return snapshot, json.NewDecoder(resp.Body).Decode(&snapshot)
}

func render(s observability.Snapshot, colours bool) {
	header := fmt.Sprintf(" Relay stats @ %s ", time.Now().Format("15:04:05"))
	if colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Connected", "Rooms", "Messages", "Typing", "Dropped", "Malformed", "Evicted"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	table.Append([]string{
		strconv.FormatInt(s.ConnectedUsers, 10),
		strconv.FormatInt(s.ActiveRooms, 10),
		strconv.FormatUint(s.MessagesRelayed, 10),
		strconv.FormatUint(s.TypingRelayed, 10),
		strconv.FormatUint(s.DroppedSends+s.DroppedEnvelopes, 10),
		strconv.FormatUint(s.MalformedEnvelopes, 10),
		strconv.FormatUint(s.EvictedConnections, 10),
	})
	table.Render()
}
