package domain

import "time"

// SchedulerState es el único estado mutable durable del proceso: el timestamp
// de la última ejecución de cada tarea periódica más los contadores de vida.
// Lo escribe únicamente el loop del scheduler; se lee al arrancar y se
// persiste tras cada tarea.
type SchedulerState struct {
	LastSnapshot         time.Time
	LastScan             time.Time
	LastWhaleScan        time.Time
	LastCalibrationCheck time.Time

	LifetimeCycles        int64
	LifetimeScans         int64
	LifetimeSnapshots     int64
	LifetimeDecisions     int64
	LifetimeOpportunities int64
}

// HeartbeatSummary es el resumen de un ciclo del scheduler que se reenvía al
// audit sink. Su envío es fire-and-forget: un fallo se loggea y nada más.
type HeartbeatSummary struct {
	StartedAt     time.Time
	Duration      time.Duration
	VenuesOK      int
	VenuesFailed  int
	Opportunities int
	Decisions     int
	Executed      int
	Watched       int
	Skipped       int
	Errors        []string
}
