package handler

type ContextKey string

var (
	RosterFileCtx ContextKey = "rosterFile"
)
