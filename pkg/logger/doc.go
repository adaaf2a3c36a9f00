// Package logger builds the structured slog logger shared by every
// component of the monitor. Output format follows the deployment
// environment: JSON in prod, text elsewhere.
package logger
