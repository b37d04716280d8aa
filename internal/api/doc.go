// Package api exposes the HTTP surface of the service: note submission,
// status polling, retry and enqueue, task listing, and the operational
// metrics snapshot. Handlers translate between HTTP and the note service;
// they never reach into stores or the pipeline directly.
package api
