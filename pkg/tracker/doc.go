// Package tracker persists the ids of direct message items the bot has
// already handled, as {"processed": [...]} in a JSON file.
package tracker
