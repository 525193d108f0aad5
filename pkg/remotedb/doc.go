/*
Package remotedb executes user SQL against remote Oracle databases.

Each query row carries its own credentials and TNS value, so there is
nothing to pool: Run opens one connection, executes one statement,
fetches the entire result set into memory and closes the connection.
The go-ora driver (github.com/sijms/go-ora/v2) speaks the Oracle wire
protocol natively; no client libraries need to be installed on the
processor host.

# Connection Strings

The stored TNS value takes two forms and connString handles both:

	(DESCRIPTION=(ADDRESS=(PROTOCOL=TCP)(HOST=db)(PORT=1521))
	  (CONNECT_DATA=(SERVICE_NAME=ORCL)))     full TNS descriptor

	db.example.com:1521/ORCL                   EZConnect
	db.example.com/ORCL                        EZConnect, port 1521
	db.example.com                             EZConnect, host only

Descriptors are passed to the driver whole; EZConnect values are split
into host, port and service.

# Error Classification

Run distinguishes two failure families because they produce different
terminal messages on the query:

  - ConnectError: the database could not be reached or refused the
    credentials (sql.Open, PingContext). The worker prefixes these
    with "Connection error:".
  - plain errors: the statement itself failed (ORA-00942 and friends).
    The driver message is recorded as-is.

Both are terminal for the query; neither is retried. A query that
failed to connect once is overwhelmingly likely to fail again, and
re-executing user SQL that may not be idempotent is worse than asking
the user to rerun.

# Memory

The full result set is fetched before anything is written to disk.
That is the intended trade-off for analytical exports (the file has to
be complete before transfer anyway), but it does bound the practical
result size by processor memory.

# See Also

  - pkg/export: consumes ResultSet
  - pkg/worker: maps ConnectError onto the terminal error message
*/
package remotedb
