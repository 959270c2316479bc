// Package controller implements the reconciliation loop that keeps Gateway
// API routes generated from Ingress resources in sync with their sources.
package controller
