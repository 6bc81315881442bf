package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/partgod/internal/db"
	"github.com/sigreer/partgod/internal/descriptor"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Manage saved plans",
	Long: `Manage partitioning plans saved with 'partgod plan --save'.

Plans can be referred to by their full id or any unique prefix.`,
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved plans",
	Run:   runPlansList,
}

var plansShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the descriptor of a saved plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlansShow,
}

var plansDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a saved plan",
	Args:  cobra.ExactArgs(1),
	Run:   runPlansDelete,
}

func init() {
	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansShowCmd)
	plansCmd.AddCommand(plansDeleteCmd)

	plansListCmd.Flags().StringP("output", "o", formatAuto, "Output format: table, json or auto")
	plansListCmd.Flags().String("device", "", "Only plans for this device (e.g. /dev/sda)")
	plansListCmd.Flags().Int("limit", 50, "Maximum number of plans to show")

	plansShowCmd.Flags().Bool("events", false, "Also print the plan history to stderr")
}

func openDB(path string) (*db.DB, error) {
	if path == "" {
		path = db.DefaultPath
	}
	return db.New(path)
}

// openStore loads the config and opens the plan store, exiting on error
func openStore() *db.DB {
	cfg := loadConfig()
	database, err := openDB(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening plan store: %v\n", err)
		os.Exit(1)
	}
	return database
}

// lookupPlan resolves an id or prefix, exiting when nothing matches
func lookupPlan(database *db.DB, id string) *db.Plan {
	plan, err := database.GetPlan(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if plan == nil {
		fmt.Fprintf(os.Stderr, "Error: plan %q not found\n", id)
		os.Exit(1)
	}
	return plan
}

// planSummary is the JSON form of a plan listing
type planSummary struct {
	ID         string `json:"id"`
	Device     string `json:"device"`
	Table      string `json:"table"`
	Partitions int    `json:"partitions"`
	CreatedAt  string `json:"created_at"`
}

func runPlansList(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("output")
	format, err := resolveFormat(format, stdoutIsTerminal())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	device, _ := cmd.Flags().GetString("device")
	limit, _ := cmd.Flags().GetInt("limit")
	if device != "" && !strings.HasPrefix(device, "/dev/") {
		device = "/dev/" + device
	}

	database := openStore()
	defer database.Close()

	plans, err := database.ListPlans(device, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying plans: %v\n", err)
		os.Exit(1)
	}

	if format == formatJSON {
		out := make([]planSummary, 0, len(plans))
		for _, p := range plans {
			out = append(out, planSummary{
				ID:         p.ID,
				Device:     p.Device,
				Table:      p.TableType,
				Partitions: p.PartitionCount,
				CreatedAt:  p.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			})
		}
		printJSON(os.Stdout, out)
		return
	}

	if len(plans) == 0 {
		fmt.Println("No saved plans. Run 'partgod plan <disk> --save' to create one.")
		return
	}

	fmt.Printf("%-36s %-16s %-6s %-8s %s\n", "ID", "DEVICE", "TABLE", "ACTIONS", "CREATED")
	fmt.Println(strings.Repeat("-", 85))
	for _, p := range plans {
		fmt.Printf("%-36s %-16s %-6s %-8d %s\n", p.ID, p.Device, p.TableType, p.PartitionCount, humanize.Time(p.CreatedAt))
	}
}

func runPlansShow(cmd *cobra.Command, args []string) {
	withEvents, _ := cmd.Flags().GetBool("events")

	database := openStore()
	defer database.Close()

	plan := lookupPlan(database, args[0])

	// Re-encode so older rows print the same way as fresh exports
	desc, err := descriptor.Unmarshal([]byte(plan.DescriptorJSON))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: plan %s: %v\n", plan.ID, err)
		os.Exit(1)
	}
	if err := descriptor.Write(os.Stdout, desc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !withEvents {
		return
	}
	events, err := database.GetPlanEvents(plan.ID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error querying events: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\nHistory of %s (%s, %s sectors of %d bytes):\n",
		plan.ID, plan.Device, humanize.Comma(plan.DiskSectors), plan.SectorSize)
	for _, e := range events {
		fmt.Fprintf(os.Stderr, "  %-20s %-10s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.EventType, dash(e.Details))
	}
}

func runPlansDelete(cmd *cobra.Command, args []string) {
	database := openStore()
	defer database.Close()

	plan := lookupPlan(database, args[0])
	deleted, err := database.DeletePlan(plan.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !deleted {
		fmt.Fprintf(os.Stderr, "Error: plan %q not found\n", args[0])
		os.Exit(1)
	}
	fmt.Printf("Deleted plan %s\n", plan.ID)
}
