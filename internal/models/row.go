// Package models defines the domain models shared across the pipeline.
package models

import "time"

// Row is one bettor-selection outcome record in the canonical format
// written to both the raw mirror and the price datasets. It is normalized
// from the source CSV, which drifts across years; every stored file has
// exactly this column set.
type Row struct {
	// EventID identifies the race.
	EventID int64 `parquet:"event_id"`

	// MenuHint is the raw venue/meeting hint from the source file.
	MenuHint *string `parquet:"menu_hint,optional"`

	EventName *string `parquet:"event_name,optional"`

	// EventDT is the race start time, truncated to minute precision.
	EventDT time.Time `parquet:"event_dt,timestamp(millisecond)"`

	// SelectionID identifies the competitor within the race.
	SelectionID int64 `parquet:"selection_id"`

	SelectionName string `parquet:"selection_name"`

	// WinLose is 1 when the selection won the market, 0 otherwise.
	WinLose *int32 `parquet:"win_lose,optional"`

	// Starting/traded price fields.
	BSP        *float64 `parquet:"bsp,optional"`
	PPWAP      *float64 `parquet:"ppwap,optional"`
	MorningWAP *float64 `parquet:"morningwap,optional"`
	PPMax      *float64 `parquet:"ppmax,optional"`
	PPMin      *float64 `parquet:"ppmin,optional"`
	IPMax      *float64 `parquet:"ipmax,optional"`
	IPMin      *float64 `parquet:"ipmin,optional"`

	// Traded volume fields.
	MorningTradedVol *float64 `parquet:"morningtradedvol,optional"`
	PPTradedVol      *float64 `parquet:"pptradedvol,optional"`
	IPTradedVol      *float64 `parquet:"iptradedvol,optional"`

	// Country is the canonical country code ("uk" is stored as "gb").
	Country string `parquet:"country"`

	// Type is the market type, "win" or "place".
	Type string `parquet:"type"`

	// SelectionNameCleaned is the symbol-stripped, country-suffixed
	// selection identifier used for cross-source joins.
	SelectionNameCleaned string `parquet:"selection_name_cleaned"`

	// EventDate is the ISO date derived from EventDT.
	EventDate string `parquet:"event_date"`

	Year int32 `parquet:"year"`
}

// Column is one entry of the canonical schema: a column name and its
// declared logical type ("int", "string", "timestamp" or "double").
type Column struct {
	Name string
	Type string
}

// SchemaColumns is the canonical schema, in canonical column order.
// Every dataset write supplies it so the catalog table definitions stay
// consistent as new files are merged in.
var SchemaColumns = []Column{
	{Name: "event_id", Type: "int"},
	{Name: "menu_hint", Type: "string"},
	{Name: "event_name", Type: "string"},
	{Name: "event_dt", Type: "timestamp"},
	{Name: "selection_id", Type: "int"},
	{Name: "selection_name", Type: "string"},
	{Name: "win_lose", Type: "int"},
	{Name: "bsp", Type: "double"},
	{Name: "ppwap", Type: "double"},
	{Name: "morningwap", Type: "double"},
	{Name: "ppmax", Type: "double"},
	{Name: "ppmin", Type: "double"},
	{Name: "ipmax", Type: "double"},
	{Name: "ipmin", Type: "double"},
	{Name: "morningtradedvol", Type: "double"},
	{Name: "pptradedvol", Type: "double"},
	{Name: "iptradedvol", Type: "double"},
	{Name: "country", Type: "string"},
	{Name: "type", Type: "string"},
	{Name: "selection_name_cleaned", Type: "string"},
	{Name: "event_date", Type: "string"},
	{Name: "year", Type: "int"},
}

// ColumnNames returns the canonical column names in canonical order.
func ColumnNames() []string {
	names := make([]string, len(SchemaColumns))
	for i, c := range SchemaColumns {
		names[i] = c.Name
	}
	return names
}
