// Package server is the web shell around the dashboard pipelines.
//
// # Routing
//
// Routes are registered on a chi mux. Pages render embedded html/template
// documents; data endpoints return JSON consumed by the dashboard front end.
//
// # Sessions and sign-in
//
// Authentication is Google OAuth2 authorization code flow. The callback
// upserts the account (the Google subject is the user ID) and stores the
// identity in a gorilla/sessions cookie. Everything under /dashboards
// requires a signed-in session: pages redirect to /welcome, data endpoints
// answer 401.
//
// # Dashboard endpoints
//
// Each dashboard slug from the manifest gets a page, a data endpoint, a
// clear endpoint, and for folder-backed dashboards an export endpoint. The
// music data endpoint drives the Spotify authorization flow: when a refresh
// needs authorization it returns the authorize URL, the Spotify callback
// bounces back to the dashboard with the code attached, and the retried
// refresh exchanges it. The budget dashboard adds a zip upload endpoint and
// from/to month-range parameters on its data endpoint. The notes dashboard
// reads and writes its value through the note repository.
package server
