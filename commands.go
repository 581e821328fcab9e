package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/spaceify/spaceify/internal/config"
	"github.com/spaceify/spaceify/internal/generation"
	"github.com/spaceify/spaceify/internal/imageprep"
	"github.com/spaceify/spaceify/internal/layout"
	"github.com/spaceify/spaceify/internal/usage"
)

func roomFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "room-type",
			Aliases: []string{"t"},
			Value:   string(layout.RoomLivingRoom),
			Usage:   "Room type (Living Room, Bedroom, Kitchen, Bathroom, Office, Dining Room, Other)",
		},
		&cli.Float64Flag{Name: "length", Usage: "Room length in feet", Required: true},
		&cli.Float64Flag{Name: "width", Usage: "Room width in feet", Required: true},
		&cli.Float64Flag{Name: "height", Usage: "Ceiling height in feet", Value: 9},
		&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Free-text notes about the room"},
		&cli.StringSliceFlag{Name: "photo", Usage: "Room photo (JPEG, PNG or WebP); repeatable"},
		&cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a summary"},
	}
}

func roomFromFlags(c *cli.Context) (layout.RoomData, error) {
	room := layout.RoomData{
		RoomType: layout.RoomType(c.String("room-type")),
		RoomDimensions: layout.Dimensions{
			Length: c.Float64("length"),
			Width:  c.Float64("width"),
			Height: c.Float64("height"),
		},
		Description: c.String("description"),
	}
	check := layout.ValidateRoomAnalysis(layout.NewRoomAnalysis(layout.RoomAnalysisInput{
		RoomType:   room.RoomType,
		Dimensions: room.RoomDimensions,
	}))
	if !check.Valid {
		return room, fmt.Errorf("invalid room: %v", check.Errors)
	}
	return room, nil
}

func readPhotos(paths []string) ([]imageprep.Image, error) {
	images := make([]imageprep.Image, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read photo: %w", err)
		}
		images = append(images, imageprep.Image{
			Name:        filepath.Base(p),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return images, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Choose an AI provider and save its API key",
		Action: func(c *cli.Context) error {
			if !config.IsInteractiveTerminal() {
				return errors.New("setup needs an interactive terminal")
			}
			if !config.RunSetupWizard() {
				return errors.New("setup did not complete")
			}
			return nil
		},
	}
}

func generateCommand() *cli.Command {
	flags := append(roomFlags(),
		&cli.StringFlag{Name: "project-id", Usage: "Project identifier (random when empty)"},
		&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: 3, Usage: "Number of layouts"},
		&cli.StringFlag{Name: "style", Usage: "Style preference"},
		&cli.StringFlag{Name: "budget", Usage: "Budget (e.g. tight, moderate, flexible)"},
		&cli.StringSliceFlag{Name: "priority", Usage: "Design priority; repeatable"},
	)
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate furniture layouts for a room",
		Flags: flags,
		Action: withServices(func(c *cli.Context, s *services) error {
			room, err := roomFromFlags(c)
			if err != nil {
				return err
			}

			projectID := c.String("project-id")
			if projectID == "" {
				projectID = uuid.NewString()
			}
			project := generation.Project{
				ID:             projectID,
				RoomType:       room.RoomType,
				RoomDimensions: room.RoomDimensions,
				Description:    room.Description,
			}

			if paths := c.StringSlice("photo"); len(paths) > 0 {
				images, err := readPhotos(paths)
				if err != nil {
					return err
				}
				result, err := s.orch.AnalyzeRoomPhotos(c.Context, images, room)
				if err != nil {
					return err
				}
				project.RoomPhotos = result.Analysis.Photos
				project.AIHistory = &generation.AIHistory{EnhancedAnalysis: &result.Analysis}
			}

			layouts, err := s.orch.GenerateLayouts(c.Context, project, generation.Options{
				Count:      c.Int("count"),
				Style:      c.String("style"),
				Budget:     c.String("budget"),
				Priorities: c.StringSlice("priority"),
			})
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, layouts)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSTYLE\tEFFICIENCY\tCONFIDENCE\tCOST\tITEMS")
			for _, l := range layouts {
				cost := "-"
				if l.EstimatedCost != nil {
					cost = *l.EstimatedCost
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%d\n", l.Name, l.Style, l.Efficiency, l.AIConfidence, cost, len(l.FurnitureItems))
			}
			return tw.Flush()
		}),
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Analyze room photos, falling back to a dimension-based analysis",
		Flags: roomFlags(),
		Action: withServices(func(c *cli.Context, s *services) error {
			room, err := roomFromFlags(c)
			if err != nil {
				return err
			}
			images, err := readPhotos(c.StringSlice("photo"))
			if err != nil {
				return err
			}
			result, err := s.orch.AnalyzeRoomPhotos(c.Context, images, room)
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return printJSON(c.App.Writer, result.Analysis)
			}
			a := result.Analysis
			w := c.App.Writer
			fmt.Fprintf(w, "Source:        %s\n", result.Source)
			fmt.Fprintf(w, "Square feet:   %g\n", a.SquareFootage)
			fmt.Fprintf(w, "Natural light: %s\n", a.NaturalLight)
			printList(w, "Challenges", a.Challenges)
			printList(w, "Opportunities", a.Opportunities)
			printList(w, "Features", a.ExistingFeatures)
			return nil
		}),
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func usageCommand() *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show or reset AI usage",
		Subcommands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show usage against the current plan",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Print JSON"}},
				Action: withServices(func(c *cli.Context, s *services) error {
					stats, err := s.orch.UsageStats(c.Context)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(c.App.Writer, stats)
					}
					w := c.App.Writer
					fmt.Fprintf(w, "Plan:               %s\n", stats.Plan)
					fmt.Fprintf(w, "Layout generations: %s\n", formatActionStats(stats.LayoutGenerations))
					fmt.Fprintf(w, "Image analyses:     %s\n", formatActionStats(stats.ImageAnalyses))
					fmt.Fprintf(w, "Total API calls:    %d\n", stats.TotalAPICalls)
					fmt.Fprintf(w, "Estimated cost:     $%s\n", stats.EstimatedCost.StringFixed(4))
					fmt.Fprintf(w, "Resets at:          %s\n", stats.ResetTimeFormatted)
					return nil
				}),
			},
			{
				Name:  "reset",
				Usage: "Zero today's counters, keeping cumulative totals",
				Action: withServices(func(c *cli.Context, s *services) error {
					l, err := s.tracker.Reset(c.Context)
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, l)
				}),
			},
			{
				Name:  "clear",
				Usage: "Delete the usage ledger entirely",
				Action: withServices(func(c *cli.Context, s *services) error {
					if err := s.tracker.Clear(c.Context); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "Usage cleared")
					return nil
				}),
			},
		},
	}
}

func formatActionStats(a usage.ActionStats) string {
	if a.Limit == usage.Unlimited {
		return fmt.Sprintf("%d used (Unlimited)", a.Used)
	}
	return fmt.Sprintf("%d/%d used, %s left (%.0f%%)", a.Used, a.Limit, a.Remaining, a.Percentage)
}

func permissionCommand() *cli.Command {
	return &cli.Command{
		Name:      "permission",
		Usage:     "Check whether an AI action is allowed right now",
		ArgsUsage: "layoutGeneration|imageAnalysis",
		Action: withServices(func(c *cli.Context, s *services) error {
			action := usage.Action(c.Args().First())
			if action == "" {
				action = usage.ActionLayoutGeneration
			}
			perm, err := s.orch.CheckPermission(c.Context, action)
			if err != nil {
				return err
			}
			if err := printJSON(c.App.Writer, map[string]any{
				"permission":  perm,
				"aiAvailable": s.orch.IsAIAvailable(),
			}); err != nil {
				return err
			}
			if !perm.CanPerform {
				return cli.Exit("", 2)
			}
			return nil
		}),
	}
}
