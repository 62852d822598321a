/*
Package dynamo provides the regeneration engine for config-generator daemons:
long-running processes that compute a configuration artifact, swap it into
place atomically when it has materially changed (or a reload is forced), and
kick a downstream server to pick it up — rolling back when the reload fails
or the new configuration turns out to be bad.

dynamo is designed to be embedded within daemons, not run as a standalone
service. The host supplies a Target that knows how to produce configuration
bytes and reload its server; dynamo supplies the event loop, the atomic
swap/rollback cycle, and the observability around both.

# Basic Usage

Implement the Target interface and hand it to an engine:

	type nginxTarget struct{}

	func (nginxTarget) ConfigFile() string { return "/etc/nginx/conf.d/app.conf" }

	func (nginxTarget) ConfigData(ctx context.Context) ([]byte, error) {
	    return render(ctx)
	}

	func (nginxTarget) ReloadServer(ctx context.Context) error {
	    return exec.CommandContext(ctx, "nginx", "-s", "reload").Run()
	}

	engine, err := dynamo.New(nginxTarget{},
	    dynamo.WithSleep(60*time.Second),
	    dynamo.WithCooldown(5*time.Second),
	)
	if err != nil {
	    log.Fatal(err)
	}

	engine.Watch("/etc/app/services", dynamo.WatchDirectory)

	if err := engine.Run(ctx); err != nil {
	    log.Fatal(err)
	}

# The Cycle

Each wake of the event loop runs at most one cycle:

 1. Read the live file and announce it to the optional before-hook.
 2. Generate candidate bytes. Generation failure is soft: logged, counted,
    and the cycle becomes a no-op.
 3. Write the candidate to a temp file in the live file's directory, carry
    over the live file's mode and ownership, and diff the contents.
 4. Swap only when forced or when the bytes differ: back up the live file,
    rename the temp file into place, reload the server.
 5. Classify the result. A reload failure or a health regression restores
    the backup; a server that was already unhealthy keeps the new bytes
    (there is no regression to protect).

Outcomes are one of Unchanged, Success, ReloadFailure, BadConfigRolledBack,
or EverythingIsAwful.

# Wake Sources

The loop multiplexes four wake sources with strict priority: termination,
filesystem watch events, manual triggers (Kick), and the poll timeout.
Manual triggers coalesce — any number of Kick calls before the loop wakes
produce exactly one forced regeneration. A cooldown window after each cycle
absorbs event bursts before the loop listens again.

# Observability

Engine activity is emitted as capitan signals (EngineStarted, CycleCompleted,
ReloadFailed, ...) and mirrored to a MetricsProvider. The prom subpackage
implements MetricsProvider on top of prometheus/client_golang.

# OS Signals

BindSignals maps SIGHUP to a forced regeneration and SIGINT/SIGTERM to a
cooperative shutdown, feeding the same channels the loop already waits on.
*/
package dynamo
