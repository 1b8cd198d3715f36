package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"kws/types"
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dbPath string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %s", err)
	}
	err = createTables(db)
	if err != nil {
		return nil, fmt.Errorf("error creating tables: %s", err)
	}
	return &SQLiteClient{db: db}, nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        startedAt TEXT NOT NULL,
        epochs INTEGER NOT NULL,
        batchSize INTEGER NOT NULL,
        clipLimit INTEGER NOT NULL,
        seed INTEGER NOT NULL,
        testAcc REAL
    );
    `

	createMetricsTable := `
    CREATE TABLE IF NOT EXISTS epoch_metrics (
        runID INTEGER NOT NULL,
        epoch INTEGER NOT NULL,
        trainLoss REAL NOT NULL,
        trainAcc REAL NOT NULL,
        valLoss REAL NOT NULL,
        valAcc REAL NOT NULL,
        PRIMARY KEY (runID, epoch)
    );
    `

	_, err := db.Exec(createRunsTable)
	if err != nil {
		return fmt.Errorf("error creating runs table: %s", err)
	}

	_, err = db.Exec(createMetricsTable)
	if err != nil {
		return fmt.Errorf("error creating epoch_metrics table: %s", err)
	}

	return nil
}

// AddRun records a finished training run and returns its row ID.
func (db *SQLiteClient) AddRun(run types.Run) (int64, error) {
	result, err := db.db.Exec(
		"INSERT INTO runs (startedAt, epochs, batchSize, clipLimit, seed, testAcc) VALUES (?, ?, ?, ?, ?, ?)",
		run.StartedAt, run.Epochs, run.BatchSize, run.Limit, run.Seed, run.TestAcc)
	if err != nil {
		return 0, fmt.Errorf("error adding run: %s", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error getting run ID: %s", err)
	}
	return runID, nil
}

// AddEpochMetrics stores the per-epoch series for a run in one transaction.
func (db *SQLiteClient) AddEpochMetrics(runID int64, metrics []types.EpochMetrics) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %s", err)
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO epoch_metrics (runID, epoch, trainLoss, trainAcc, valLoss, valAcc) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %s", err)
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(runID, m.Epoch, m.TrainLoss, m.TrainAcc, m.ValLoss, m.ValAcc); err != nil {
			tx.Rollback()
			return fmt.Errorf("error executing statement: %s", err)
		}
	}

	return tx.Commit()
}

// GetEpochMetrics reads back the metric series for a run ordered by epoch.
func (db *SQLiteClient) GetEpochMetrics(runID int64) ([]types.EpochMetrics, error) {
	rows, err := db.db.Query(`
		SELECT epoch, trainLoss, trainAcc, valLoss, valAcc
		FROM epoch_metrics
		WHERE runID = ?
		ORDER BY epoch
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %s", err)
	}
	defer rows.Close()

	var metrics []types.EpochMetrics
	for rows.Next() {
		var m types.EpochMetrics
		if err := rows.Scan(&m.Epoch, &m.TrainLoss, &m.TrainAcc, &m.ValLoss, &m.ValAcc); err != nil {
			return nil, fmt.Errorf("error scanning row: %s", err)
		}
		metrics = append(metrics, m)
	}

	return metrics, nil
}

// GetRun retrieves a run by ID.
func (db *SQLiteClient) GetRun(runID int64) (types.Run, bool, error) {
	row := db.db.QueryRow("SELECT id, startedAt, epochs, batchSize, clipLimit, seed, testAcc FROM runs WHERE id = ?", runID)

	var run types.Run
	err := row.Scan(&run.ID, &run.StartedAt, &run.Epochs, &run.BatchSize, &run.Limit, &run.Seed, &run.TestAcc)
	if err != nil {
		if err == sql.ErrNoRows {
			return types.Run{}, false, nil
		}
		return types.Run{}, false, fmt.Errorf("failed to retrieve run: %s", err)
	}

	return run, true, nil
}
