/*
	Project: Escuela, school administration (courses, groups, enrollment, grades, admission documents)
	Clients: web login page, mobile app, `apps/cli`
*/
package escuela

/*
TODO: token revocation: a role change only reaches the client at its next login (tokens live 8h).
	- denylist of token IDs in Redis (the rate limiter already talks to it) checked by the gate
	- or shorter tokens + refresh endpoint

TODO: admin: upload CSV to bulk create users & enrollments

TODO: docente: export grades of a course as CSV

TODO: Notifications
	- email aspirante when an admin reviews one of their documents
*/
