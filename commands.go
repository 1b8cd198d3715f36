package main

import (
	"flag"
	"math/rand"
	"time"

	"github.com/fatih/color"

	"kws/cnn"
	"kws/dataset"
	"kws/db"
	"kws/report"
	"kws/speechcommands"
	"kws/train"
	"kws/types"
	"kws/utils"
)

var green = color.New(color.FgGreen)

// DownloadCommand fetches and unpacks the speech commands archive.
func DownloadCommand(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	dataDir := fs.String("data", "speech_commands", "dataset directory")
	fs.Parse(args)

	if _, err := speechcommands.Ensure(*dataDir); err != nil {
		panic(err)
	}
	utils.Log.Info("dataset ready in %s", *dataDir)
}

// TrainCommand runs the full pipeline: dataset, split, training, test
// evaluation, charts and the run ledger.
func TrainCommand(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dataDir := fs.String("data", "speech_commands", "dataset directory")
	limit := fs.Int("limit", 0, "cap on training clips, 0 for all")
	epochs := fs.Int("epochs", 20, "training epochs")
	batchSize := fs.Int("batch", 32, "batch size")
	valFrac := fs.Float64("val", 0.2, "validation fraction of the training set")
	workers := fs.Int("workers", 4, "loader workers")
	seed := fs.Int64("seed", 0, "random seed, 0 for time-based")
	maxLR := fs.Float64("lr", 0.001, "peak learning rate")
	outDir := fs.String("out", "charts", "chart output directory")
	dbPath := fs.String("db", "kws.db", "run ledger path, empty to disable")
	fs.Parse(args)

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	startedAt := time.Now().UTC().Format(time.RFC3339)

	corpus, err := speechcommands.Ensure(*dataDir)
	if err != nil {
		panic(err)
	}

	trainSrc, testSrc, err := corpus.Sources()
	if err != nil {
		panic(err)
	}

	utils.Log.Info("loading %d training and %d test clips", trainSrc.Len(), testSrc.Len())
	trainData := dataset.New(trainSrc, cnn.InputLength, *limit, true, rng)
	testData := dataset.New(testSrc, cnn.InputLength, 0, false, rng)

	trainView, valView := dataset.Split(trainData, 1-*valFrac, rng)
	utils.Log.Info("split: %d train, %d val, %d test", trainView.Len(), valView.Len(), testData.Len())

	trainLoader := dataset.NewLoader(trainView, *batchSize, cnn.InputLength, true, *workers, rng)
	valLoader := dataset.NewLoader(valView, *batchSize, cnn.InputLength, false, *workers, rng)
	testLoader := dataset.NewLoader(testData, *batchSize, cnn.InputLength, false, *workers, rng)

	model := cnn.NewModel(rng)
	history, err := train.Train(model, trainLoader, valLoader, train.Config{
		Epochs:   *epochs,
		MaxLR:    *maxLR,
		ClipNorm: 1.0,
	})
	if err != nil {
		panic(err)
	}

	testAcc, err := train.Evaluate(model, testLoader)
	if err != nil {
		panic(err)
	}
	green.Printf("Test Set Accuracy: %.2f%%\n", testAcc)

	paths, err := report.SaveCharts(history, testAcc, *outDir)
	if err != nil {
		panic(err)
	}
	for _, p := range paths {
		utils.Log.Info("wrote %s", p)
	}

	if *dbPath == "" {
		return
	}
	if err := saveRun(*dbPath, types.Run{
		StartedAt: startedAt,
		Epochs:    *epochs,
		BatchSize: *batchSize,
		Limit:     *limit,
		Seed:      *seed,
		TestAcc:   testAcc,
	}, history); err != nil {
		panic(err)
	}
}

func saveRun(dbPath string, run types.Run, history *train.History) error {
	client, err := db.NewSQLiteClient(dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	runID, err := client.AddRun(run)
	if err != nil {
		return err
	}
	if err := client.AddEpochMetrics(runID, history.Epochs()); err != nil {
		return err
	}
	utils.Log.Info("recorded run %d in %s", runID, dbPath)
	return nil
}
