package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/uberswe/zhsbooker/internal/catalog"
	"github.com/uberswe/zhsbooker/internal/site"
	"github.com/uberswe/zhsbooker/pkg/browser"
)

func newCoursesCmd() *cobra.Command {
	var (
		course   string
		headless bool
		timeout  time.Duration
	)

	c := &cobra.Command{
		Use:   "courses",
		Short: "List catalog courses, or the slots of one course to help write a detail",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			sess, err := browser.Open(ctx, browser.Options{
				Headless:     headless,
				Timeout:      timeout,
				WindowWidth:  1920,
				WindowHeight: 1080,
			})
			if err != nil {
				return err
			}
			defer sess.Close()

			if course == "" {
				names, err := catalog.Courses(ctx, sess, site.ZHS)
				if err != nil {
					return err
				}
				catalog.PrintCourses(out, names)
				return nil
			}

			if err := catalog.Open(ctx, sess, site.ZHS, course); err != nil {
				return err
			}
			slots, err := catalog.Slots(ctx, sess, site.ZHS)
			if err != nil {
				return err
			}
			catalog.PrintSlots(out, course, slots)
			return nil
		},
	}

	c.Flags().StringVar(&course, "course", "", "Show the slots of this course")
	c.Flags().BoolVar(&headless, "headless", true, "Run the browser without a window")
	c.Flags().DurationVar(&timeout, "timeout", browser.DefaultTimeout, "How long to wait for each page element")
	return c
}
