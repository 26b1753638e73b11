package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"trustline/backend/internal/app"
	"trustline/backend/internal/complaint"
	"trustline/backend/internal/config"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

func main() {
	_ = godotenv.Load()

	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "trustline-admin",
		Usage: "Operator commands against the complaint store",
		Commands: []*cli.Command{
			escalateCommand(),
			transitionCommand(),
			statsCommand(),
			listCommand(),
			setRoleCommand(),
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

// withApp bootstraps the services without starting any background loop. Events
// are delivered inline so they reach every sink before the command exits.
func withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	a, err := app.Bootstrap(ctx, cfg, app.WithInlineFanout())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func escalateCommand() *cli.Command {
	return &cli.Command{
		Name:  "escalate",
		Usage: "Run one priority escalation pass",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(ctx, func(a *app.Application) error {
				res, err := a.Escalator.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("scanned %d, promoted %d\n", res.Scanned, res.Promoted)
				return nil
			})
		},
	}
}

func transitionCommand() *cli.Command {
	return &cli.Command{
		Name:  "transition",
		Usage: "Move a complaint to a new status",
		Flags: []cli.Flag{
			&cli.UintFlag{Name: "id", Required: true, Usage: "complaint id"},
			&cli.StringFlag{Name: "status", Required: true, Usage: "PENDING, IN_PROGRESS, RESOLVED or REJECTED"},
			&cli.StringFlag{Name: "message", Usage: "note recorded with the update"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			status, err := complaint.ParseStatus(c.String("status"))
			if err != nil {
				return err
			}
			return withApp(ctx, func(a *app.Application) error {
				comp, err := a.Complaints.Transition(ctx, uint(c.Uint("id")), status, c.String("message"), complaint.System)
				if err != nil {
					return err
				}
				fmt.Printf("complaint #%d is now %s\n", comp.ID, comp.Status)
				return nil
			})
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Print the dashboard statistics snapshot",
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(ctx, func(a *app.Application) error {
				return printJSON(a.Stats.Snapshot(ctx))
			})
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List complaints, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "category"},
			&cli.StringFlag{Name: "subcategory"},
			&cli.StringFlag{Name: "status"},
			&cli.StringFlag{Name: "filed-by"},
			&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			f := storage.Filter{
				Category:    c.String("category"),
				Subcategory: c.String("subcategory"),
				FiledBy:     c.String("filed-by"),
			}
			if raw := c.String("status"); raw != "" {
				st, err := complaint.ParseStatus(raw)
				if err != nil {
					return err
				}
				f.Status = st
			}
			return withApp(ctx, func(a *app.Application) error {
				list, err := a.Complaints.Find(ctx, f)
				if err != nil {
					return err
				}
				if c.Bool("json") {
					return printJSON(list)
				}
				printComplaints(list)
				return nil
			})
		},
	}
}

func setRoleCommand() *cli.Command {
	return &cli.Command{
		Name:  "set-role",
		Usage: "Grant USER or ADMIN to a registered user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "role", Value: models.RoleAdmin},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return withApp(ctx, func(a *app.Application) error {
				if err := a.Users.SetRole(ctx, c.String("email"), c.String("role")); err != nil {
					return err
				}
				fmt.Printf("%s is now %s\n", c.String("email"), c.String("role"))
				return nil
			})
		},
	}
}

func printComplaints(list []models.Complaint) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tFILED BY\tCREATED\tTITLE")
	for _, c := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.Priority, c.Category, c.FiledBy,
			c.CreatedAt.Format("2006-01-02 15:04"), c.Title)
	}
	_ = w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
