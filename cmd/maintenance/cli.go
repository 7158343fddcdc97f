package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/benglish/academic-core/internal/service"
)

// Command kinds besides the repair tasks.
const (
	cmdTasks   = "tasks"
	cmdSeed    = "seed"
	cmdMigrate = "migrate"
	cmdToken   = "token"
	cmdRepair  = "repair"
)

var errUsage = errors.New("usage")

// invocation is a parsed command line.
type invocation struct {
	Kind     string
	Database string
	Task     string
	Batch    int
	Revert   bool
	JSON     bool
	SeedFile string
	Migrate  string
	Steps    int
	UserID   string
}

func repairTasks() []string {
	return []string{
		service.TaskBackfillEnrollmentProgress,
		service.TaskCheckCatalog,
		service.TaskDeactivateSkillsExtras,
		service.TaskFixSubjectProgramIDs,
		service.TaskNullZeroGrades,
		service.TaskRebuildSessionTracking,
		service.TaskRecomputeProgress,
		service.TaskReconcilePlans,
		service.JobNightlySuite,
	}
}

func isRepairTask(name string) bool {
	for _, task := range repairTasks() {
		if task == name {
			return true
		}
	}
	return false
}

// parseArgs reads flags followed by a command. Usage errors wrap errUsage and print the
// usage text to stderr.
func parseArgs(args []string, stderr io.Writer) (inv invocation, err error) {
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&inv.Database, "db", "", "database name (overrides DB_NAME)")
	fs.IntVar(&inv.Batch, "batch", 0, "records committed per transaction (default MAINTENANCE_BATCH_SIZE)")
	fs.BoolVar(&inv.Revert, "revert", false, "undo the task where supported (deactivate-skills-extras)")
	fs.BoolVar(&inv.JSON, "json", false, "print the result as JSON")
	fs.Usage = func() { printUsage(stderr, fs) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return inv, err
		}
		return inv, fmt.Errorf("%w: %v", errUsage, err)
	}
	defer func() {
		if err != nil {
			fs.Usage()
		}
	}()

	rest := fs.Args()
	if len(rest) == 0 {
		return inv, fmt.Errorf("%w: command required", errUsage)
	}
	if inv.Batch < 0 {
		return inv, fmt.Errorf("%w: -batch must not be negative", errUsage)
	}

	switch name := rest[0]; {
	case name == cmdTasks:
		inv.Kind = cmdTasks
	case name == cmdSeed:
		if len(rest) != 2 {
			return inv, fmt.Errorf("%w: seed takes exactly one file", errUsage)
		}
		inv.Kind, inv.SeedFile = cmdSeed, rest[1]
	case name == cmdMigrate:
		inv, err = parseMigrate(inv, rest[1:])
		return inv, err
	case name == cmdToken:
		if len(rest) != 2 {
			return inv, fmt.Errorf("%w: token takes a user id", errUsage)
		}
		inv.Kind, inv.UserID = cmdToken, rest[1]
	case isRepairTask(name):
		if len(rest) > 1 {
			return inv, fmt.Errorf("%w: unexpected arguments after %s", errUsage, name)
		}
		if inv.Revert && name != service.TaskDeactivateSkillsExtras {
			return inv, fmt.Errorf("%w: -revert only applies to %s", errUsage, service.TaskDeactivateSkillsExtras)
		}
		inv.Kind, inv.Task = cmdRepair, name
	default:
		return inv, fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	return inv, nil
}

func parseMigrate(inv invocation, args []string) (invocation, error) {
	inv.Kind = cmdMigrate
	if len(args) == 0 {
		return inv, fmt.Errorf("%w: migrate needs up, down or version", errUsage)
	}
	inv.Migrate = args[0]
	switch inv.Migrate {
	case "up", "version":
		if len(args) > 1 {
			return inv, fmt.Errorf("%w: migrate %s takes no arguments", errUsage, inv.Migrate)
		}
	case "down":
		inv.Steps = 1
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return inv, fmt.Errorf("%w: invalid step count %q", errUsage, args[1])
			}
			inv.Steps = n
		} else if len(args) > 2 {
			return inv, fmt.Errorf("%w: migrate down takes at most one step count", errUsage)
		}
	default:
		return inv, fmt.Errorf("%w: unknown migrate action %q", errUsage, inv.Migrate)
	}
	return inv, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Benglish academic maintenance")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  maintenance [flags] <task>")
	fmt.Fprintln(w, "  maintenance [flags] seed <catalog.yaml>")
	fmt.Fprintln(w, "  maintenance [flags] migrate up|down [n]|version")
	fmt.Fprintln(w, "  maintenance token <user-id>")
	fmt.Fprintln(w, "  maintenance tasks")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "TASKS:")
	for _, task := range repairTasks() {
		fmt.Fprintf(w, "  %s\n", task)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FLAGS:")
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  maintenance -db benglish_prod deactivate-skills-extras")
	fmt.Fprintln(w, "  maintenance -db benglish_prod -revert deactivate-skills-extras")
	fmt.Fprintln(w, "  maintenance -batch 200 recompute-progress")
}
