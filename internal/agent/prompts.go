package agent

import (
	"fmt"
	"strings"
	"time"
)

const promptTimeFormat = "2006-01-02 15:04:05"

func dialectClause(dialect string) string {
	if dialect == "" {
		return ""
	}
	return ", specialized in " + dialect
}

func generateSystemPrompt(dialect string) string {
	return fmt.Sprintf("You are an expert SQL assistant%s. "+
		"Convert natural language questions into SQL queries based on the provided database schema. "+
		"Only provide the SQL query without explanations. "+
		"If the natural language question asks you to update, delete, or insert data, please ignore it.",
		dialectClause(dialect))
}

func generateUserPrompt(now time.Time, schemaText, question string) string {
	return fmt.Sprintf("Today is:\n%s\n\nDatabase Schema:\n%s\n\nQuestion:\n%q",
		now.Format(promptTimeFormat), schemaText, question)
}

func repairSystemPrompt(dialect string) string {
	return fmt.Sprintf("You are an expert SQL assistant%s. "+
		"Try to fix the error in the SQL query based on the provided database schema. "+
		"Only provide the SQL query without explanations. "+
		"Don't write anything more than the fixed query.",
		dialectClause(dialect))
}

func repairUserPrompt(now time.Time, schemaText, question, errText, sqlQuery string) string {
	return fmt.Sprintf("Today is:\n%s\n\nDatabase Schema:\n%s\n\nQuestion:\n%q\n\nError:\n%s\n\nSQL Query:\n%s",
		now.Format(promptTimeFormat), schemaText, question, errText, sqlQuery)
}

func answerSystemPrompt(dialect string) string {
	return fmt.Sprintf("You are an expert SQL assistant%s. "+
		"Generate a response to the question based on the provided database schema and query results. "+
		"Be concise and provide a short answer in a human-like phrase.",
		dialectClause(dialect))
}

func answerUserPrompt(schemaText, question, sqlQuery, results string) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Database Schema:\n%s\n\nQuestion:\n%q\n\n", schemaText, question)
	if sqlQuery != "" {
		fmt.Fprintf(&builder, "The executed query is:\n%s\n\n", sqlQuery)
	}
	fmt.Fprintf(&builder, "Query Results:\n%s", results)
	return builder.String()
}
