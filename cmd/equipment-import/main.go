package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/redfibra/fieldops_backend/config"
	"bitbucket.org/redfibra/fieldops_backend/models"
)

func main() {
	filePath := flag.String("file", "", "Required: path to the .xlsx equipment intake file")
	flag.Parse()

	if strings.TrimSpace(*filePath) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}
	if !strings.HasSuffix(strings.ToLower(*filePath), ".xlsx") {
		fmt.Fprintln(os.Stderr, "only .xlsx files are supported")
		os.Exit(1)
	}

	f, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, config.ErrDBNotInitialized)
		os.Exit(1)
	}

	summary, err := models.NewStore(db).ImportEquipmentFromXlsx(context.Background(), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Rows: %d  Imported: %d  Duplicates: %d  Invalid: %d\n",
		summary.TotalRows, summary.Imported, summary.Duplicates, summary.Invalid)
	for _, msg := range summary.Errors {
		fmt.Println("  " + msg)
	}
}
