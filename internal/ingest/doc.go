// Package ingest turns tabular campaign data into domain records.
//
// The CSV reader accepts the canonical headers (Date, Campaign_Name,
// Emails_Sent, Opens, Goal_Open_Rate) and a set of aliases, matched without
// regard to case, spacing or punctuation. Optional Root_Cause_Hypothesis and
// Path_to_Green columns carry reviewer narrative, which is how a previously
// exported report restores its annotations.
//
// Any missing required column or malformed required value aborts the load
// with a *SchemaError that matches ErrInputSchema.
package ingest
