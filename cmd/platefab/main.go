package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/platefab/platefab/pkg/configs/store"
	"github.com/platefab/platefab/pkg/domain"
	"github.com/platefab/platefab/pkg/domain/step"
	"github.com/platefab/platefab/pkg/domain/step/localrun"
	tenant "github.com/platefab/platefab/pkg/domain/tenant/db/postgres"
	"github.com/platefab/platefab/pkg/utils/filewatch"
	"github.com/platefab/platefab/pkg/utils/pointer"
)

const usage = `usage: platefab [-config FILE] STEP EXPERIMENT_ID COMMAND [flags]

commands:
  init              build the step's batches and write them to disk
  run -job N        execute run batch N
  collect           execute the collect batch
  localrun          execute every batch in-process
  submit            register a submission and print its job descriptions
  info              print the step's persisted batches
  logs [-job N]     print the latest log of a job (collect when -job is absent)
  delete-experiment drop the experiment's rows, schema and files
`

func main() {
	configPath := flag.String("config", "platefab.yml", "path to the config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	rest := flag.Args()
	if len(rest) < 3 {
		flag.Usage()
		os.Exit(2)
	}
	stepName := rest[0]
	experimentId, err := strconv.Atoi(rest[1])
	if err != nil {
		log.Fatalf("experiment id %q is not an integer", rest[1])
	}
	command, commandArgs := rest[2], rest[3:]

	conf, err := store.Load(*configPath)
	if err != nil {
		log.Fatalf("can not read configuration: %s", err)
	}

	ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), *configPath)
	if err != nil {
		log.Fatalf("can not watch configuration: %s", err)
	}
	defer cancel()
	context.AfterFunc(ctx, func() {
		log.Fatalln("config file is updated. quit to restart.")
	})

	logger := log.Default()

	db, err := tenant.NewDatabases(conf.Database().PoolSize())
	if err != nil {
		log.Fatalf("can not build the database registry: %s", err)
	}
	defer db.Close()
	manager := tenant.NewManager(db, conf.Database().Master(), conf.Database().Worker(), logger)
	if err := manager.EnsureMain(ctx); err != nil {
		log.Fatalf("can not prepare the global schema: %s", err)
	}

	base := step.NewBase(experimentId, stepName, conf.WorkflowRoot(), conf.StepVerbosity(), logger)

	switch command {
	case "init":
		err = initStep(ctx, base, commandArgs)
	case "run":
		err = runJob(ctx, base, commandArgs)
	case "collect":
		err = collectJob(ctx, base)
	case "localrun":
		err = localRun(ctx, base, conf.LocalPoolSize(), logger)
	case "submit":
		err = submit(ctx, base, manager, int64(experimentId), commandArgs)
	case "info":
		err = info(base)
	case "logs":
		err = logs(base, commandArgs)
	case "delete-experiment":
		err = manager.DeleteExperiment(ctx, int64(experimentId))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s %s: %s", stepName, command, err)
	}
}

// steps is the registry of linked-in planner implementations.
//
// Analysis steps live outside this module; a deployment links its own
// main registering them here before the lookup.
var steps = step.NewRegistry()

func loadStepArgs(path string) (step.Args, error) {
	if path == "" {
		return step.Args{}, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	args := step.Args{}
	if err := yaml.Unmarshal(content, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func initStep(ctx context.Context, base *step.Base, args []string) error {
	flags := flag.NewFlagSet("init", flag.ExitOnError)
	argsPath := flags.String("args", "", "path to the step's argument file (YAML)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	planner, err := steps.New(base)
	if err != nil {
		return err
	}
	stepArgs, err := loadStepArgs(*argsPath)
	if err != nil {
		return err
	}

	if err := planner.DeletePreviousJobOutput(ctx); err != nil {
		return err
	}
	batches, err := planner.CreateBatches(ctx, stepArgs)
	if err != nil {
		return err
	}
	return base.Store().Write(batches)
}

func runJob(ctx context.Context, base *step.Base, args []string) error {
	flags := flag.NewFlagSet("run", flag.ExitOnError)
	jobId := flags.Int("job", 0, "run batch id")
	if err := flags.Parse(args); err != nil {
		return err
	}

	planner, err := steps.New(base)
	if err != nil {
		return err
	}
	batch, err := base.Store().ReadRunBatch(*jobId)
	if err != nil {
		return err
	}
	return planner.RunJob(ctx, batch)
}

func collectJob(ctx context.Context, base *step.Base) error {
	planner, err := steps.New(base)
	if err != nil {
		return err
	}
	batch, err := base.Store().ReadCollectBatch()
	if err != nil {
		return err
	}
	return planner.CollectJobOutput(ctx, batch)
}

func localRun(ctx context.Context, base *step.Base, poolSize int, logger *log.Logger) error {
	planner, err := steps.New(base)
	if err != nil {
		return err
	}
	batches, err := base.Store().ReadAll()
	if err != nil {
		return err
	}

	exec, err := localrun.New(poolSize, logger)
	if err != nil {
		return err
	}
	defer exec.Close()
	return exec.Execute(ctx, planner, batches)
}

// submit registers a submission row and prints the job descriptions
// the external scheduler consumes.
func submit(ctx context.Context, base *step.Base, manager *tenant.Manager, experimentId int64, args []string) error {
	flags := flag.NewFlagSet("submit", flag.ExitOnError)
	walltime := flags.String("walltime", "00:30:00", "walltime request per run job (HH:MM:SS)")
	memoryMB := flags.Int("memory", 2000, "memory request per run job (MB)")
	cores := flags.Int("cores", 1, "core request per run job")
	if err := flags.Parse(args); err != nil {
		return err
	}
	duration, err := domain.ParseWalltime(*walltime)
	if err != nil {
		return err
	}

	batches, err := base.Store().ReadAll()
	if err != nil {
		return err
	}

	var submissionId int64
	err = manager.WithMainSession(ctx, func(ctx context.Context, s *tenant.Session) error {
		return s.Tx().QueryRow(
			ctx,
			`INSERT INTO "submissions" ("experiment_id", "program") VALUES ($1, $2) RETURNING "id"`,
			experimentId, base.StepName,
		).Scan(&submissionId)
	})
	if err != nil {
		return err
	}

	workflowStep := base.CreateStep(int(submissionId))
	jobIds := make([]int, len(batches.Run))
	for nth, b := range batches.Run {
		jobIds[nth] = b.Id
	}
	runJobs, err := base.CreateRunJobs(int(submissionId), jobIds, duration, *memoryMB, *cores)
	if err != nil {
		return err
	}
	workflowStep.RunJobs = runJobs
	if batches.Collect != nil {
		collect, err := base.CreateCollectJob(int(submissionId))
		if err != nil {
			return err
		}
		workflowStep.CollectJob = collect
	}

	fmt.Printf("submission %d of step %q:\n", submissionId, base.StepName)
	for _, job := range workflowStep.RunJobs.Jobs() {
		fmt.Printf(
			"  run %d: %v (walltime %s, %d MB, %d cores)\n",
			*job.JobId, job.Arguments,
			domain.FormatWalltime(job.RequestedWalltime),
			job.RequestedMemoryMB, job.RequestedCores,
		)
	}
	if workflowStep.CollectJob != nil {
		job := workflowStep.CollectJob
		fmt.Printf(
			"  collect: %v (walltime %s, %d MB, %d cores)\n",
			job.Arguments,
			domain.FormatWalltime(job.RequestedWalltime),
			job.RequestedMemoryMB, job.RequestedCores,
		)
	}
	return nil
}

func info(base *step.Base) error {
	batches, err := base.Store().ReadAll()
	if err != nil {
		return err
	}
	return base.PrintJobDescriptions(os.Stdout, batches)
}

func logs(base *step.Base, args []string) error {
	flags := flag.NewFlagSet("logs", flag.ExitOnError)
	jobId := flags.Int("job", 0, "run batch id (omit for the collect job)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var target *int
	if *jobId != 0 {
		target = pointer.Ref(*jobId)
	}
	out, err := base.GetLogOutputFromFiles(target)
	if err != nil {
		return err
	}
	fmt.Println(out.StdOut)
	if out.StdErr != "" {
		fmt.Fprintln(os.Stderr, out.StdErr)
	}
	return nil
}
