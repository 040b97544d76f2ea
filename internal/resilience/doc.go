// Package resilience groups the fault tolerance helpers used by the worker.
//
// circuitbreaker guards each notification channel transport; retry holds the
// backoff schedules for the poll job queue and the first database connect.
//
//	b := circuitbreaker.New(circuitbreaker.ForChannel("sms"), logger)
//	err := b.Run(func() error { return send() })
//	if circuitbreaker.Rejected(err) {
//	    // channel is cooling down
//	}
//
//	delay := retry.QueueConfig(6).Delay(attempt)
package resilience
