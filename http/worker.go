package http

import (
	"net"
	"sync"
)

// WorkerPool serves connections on a fixed number of goroutines. Each
// worker owns one RequestCtx and handles one connection at a time.
type WorkerPool struct {
	conns chan net.Conn
	wg    sync.WaitGroup
}

func NewWorkerPool(size int, serve func(reqCtx *RequestCtx, conn net.Conn)) *WorkerPool {
	if size < 1 {
		size = 1
	}

	wp := &WorkerPool{
		conns: make(chan net.Conn),
	}

	for range size {
		reqCtx := NewRequestCtx()

		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			for conn := range wp.conns {
				serve(reqCtx, conn)
			}
		}()
	}

	return wp
}

// Serve blocks until a worker is free to take conn.
func (wp *WorkerPool) Serve(conn net.Conn) {
	wp.conns <- conn
}

// Stop waits for in-flight connections. Serve must not be called after.
func (wp *WorkerPool) Stop() {
	close(wp.conns)
	wp.wg.Wait()
}
