// Package machine simulates the hardware a single-processor scheduler runs on:
// an interrupt controller and a periodic timer.
//
// The processor is owned by exactly one goroutine at a time. Only that
// goroutine may disable or enable interrupts. Devices, such as the [Timer],
// raise interrupts from any goroutine; the handler runs on the processor the
// next time interrupts are enabled, so it never overlaps a critical section.
//
// Simulated time passes as the processor works: each time a critical section
// ends, the [Timer] advances its clock by a step and raises an interrupt when
// a period has gone by.
package machine
