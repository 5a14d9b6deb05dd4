// aidadmin is the operator CLI for running agents: inventory
// management on supply agents and need submission on need agents.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/wh0th3h3llam1/agent-aid/internal/protocol"
)

func main() {
	app := &cli.App{
		Name:  "aidadmin",
		Usage: "Operate disaster-relief need and supply agents",
		Commands: []*cli.Command{
			restockCmd,
			adjustCmd,
			inventoryCmd,
			needCmd,
			statusCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var agentFlag = &cli.StringFlag{
	Name:     "agent",
	Required: true,
	Usage:    "base URL of the target agent, e.g. http://localhost:8091",
}

var secretFlag = &cli.StringFlag{
	Name:    "secret",
	EnvVars: []string{"ADMIN_SECRET"},
	Usage:   "shared admin secret",
}

var itemFlag = &cli.StringSliceFlag{
	Name:     "item",
	Required: true,
	Usage:    "item spec name:qty[:unit[:unit_price]], repeatable",
}

var restockCmd = &cli.Command{
	Name:  "restock",
	Usage: "Add stock to a supply agent",
	Flags: []cli.Flag{agentFlag, secretFlag, itemFlag},
	Action: func(ctx *cli.Context) error {
		return mutateInventory(ctx, "/v1/admin/restock")
	},
}

var adjustCmd = &cli.Command{
	Name:  "adjust",
	Usage: "Apply signed quantity deltas on a supply agent",
	Flags: []cli.Flag{agentFlag, secretFlag, itemFlag},
	Action: func(ctx *cli.Context) error {
		return mutateInventory(ctx, "/v1/admin/adjust")
	},
}

var inventoryCmd = &cli.Command{
	Name:  "inventory",
	Usage: "Show a supply agent's current stock",
	Flags: []cli.Flag{agentFlag, secretFlag},
	Action: func(ctx *cli.Context) error {
		req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet,
			ctx.String("agent")+"/v1/admin/inventory", nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Admin-Secret", ctx.String("secret"))

		var status protocol.InventoryStatus
		if err := do(req, &status); err != nil {
			return err
		}
		printInventory(status)
		return nil
	},
}

var needCmd = &cli.Command{
	Name:  "need",
	Usage: "Submit a need to a need agent",
	Flags: []cli.Flag{
		agentFlag,
		itemFlag,
		&cli.StringFlag{Name: "priority", Value: "medium", Usage: "low, medium, high or critical"},
		&cli.Float64Flag{Name: "max-eta", Value: 24, Usage: "delivery SLA in hours"},
		&cli.StringFlag{Name: "address", Usage: "free-form location, geocoded best-effort"},
		&cli.Float64Flag{Name: "lat", Usage: "explicit latitude (with --lon)"},
		&cli.Float64Flag{Name: "lon", Usage: "explicit longitude (with --lat)"},
	},
	Action: func(ctx *cli.Context) error {
		items, err := parseItems(ctx.StringSlice("item"))
		if err != nil {
			return err
		}

		body := map[string]any{
			"items":         items,
			"priority":      ctx.String("priority"),
			"max_eta_hours": ctx.Float64("max-eta"),
		}
		if ctx.String("address") != "" {
			body["address"] = ctx.String("address")
		}
		if ctx.IsSet("lat") && ctx.IsSet("lon") {
			body["location"] = protocol.Geo{Lat: ctx.Float64("lat"), Lon: ctx.Float64("lon")}
		}

		var created struct {
			NeedID string `json:"need_id"`
		}
		if err := postJSON(ctx, ctx.String("agent")+"/v1/needs", body, &created); err != nil {
			return err
		}
		fmt.Println("need submitted:", created.NeedID)
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "Show the outstanding quantities of an open need",
	Flags: []cli.Flag{
		agentFlag,
		&cli.StringFlag{Name: "id", Required: true, Usage: "need id"},
	},
	Action: func(ctx *cli.Context) error {
		req, err := http.NewRequestWithContext(ctx.Context, http.MethodGet,
			ctx.String("agent")+"/v1/needs/"+ctx.String("id"), nil)
		if err != nil {
			return err
		}

		var status struct {
			NeedID    string         `json:"need_id"`
			Remaining map[string]int `json:"remaining"`
		}
		if err := do(req, &status); err != nil {
			return err
		}
		fmt.Println("need:", status.NeedID)
		for name, qty := range status.Remaining {
			fmt.Printf("  %-20s %d outstanding\n", name, qty)
		}
		return nil
	},
}

func mutateInventory(ctx *cli.Context, path string) error {
	items, err := parseItems(ctx.StringSlice("item"))
	if err != nil {
		return err
	}

	var status protocol.InventoryStatus
	err = postJSON(ctx, ctx.String("agent")+path, map[string]any{
		"secret": ctx.String("secret"),
		"items":  items,
	}, &status)
	if err != nil {
		return err
	}
	printInventory(status)
	return nil
}

// parseItems decodes name:qty[:unit[:unit_price]] specs.
func parseItems(specs []string) ([]protocol.Line, error) {
	items := make([]protocol.Line, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 4 || parts[0] == "" {
			return nil, fmt.Errorf("malformed item %q, want name:qty[:unit[:unit_price]]", spec)
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("item %q: bad quantity: %w", spec, err)
		}
		line := protocol.Line{Name: parts[0], Qty: qty}
		if len(parts) > 2 {
			line.Unit = parts[2]
		}
		if len(parts) > 3 {
			price, err := strconv.ParseFloat(parts[3], 64)
			if err != nil {
				return nil, fmt.Errorf("item %q: bad unit price: %w", spec, err)
			}
			line.UnitPrice = price
		}
		items = append(items, line)
	}
	return items, nil
}

func postJSON(ctx *cli.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx.Context, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, out)
}

func do(req *http.Request, out any) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var remote struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &remote) == nil && remote.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, remote.Error)
		}
		return fmt.Errorf("agent returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printInventory(status protocol.InventoryStatus) {
	fmt.Println("supplier:", status.SupplierID)
	if len(status.Inventory) == 0 {
		fmt.Println("  (no stock)")
		return
	}
	for _, l := range status.Inventory {
		unit := l.Unit
		if unit == "" {
			unit = "ea"
		}
		fmt.Printf("  %-20s %6d %-6s @ %.2f\n", l.Name, l.Qty, unit, l.UnitPrice)
	}
}
