package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues[%s] priority must be positive", name)
		}
	}

	if c.Queue.MaxRetry < 0 {
		return errors.New("queue.max_retry must not be negative")
	}
	if c.Queue.BackoffBase <= 0 {
		return errors.New("queue.backoff_base must be positive")
	}
	if c.Queue.BackoffCap < c.Queue.BackoffBase {
		return errors.New("queue.backoff_cap must be at least queue.backoff_base")
	}

	if c.Storage.Root == "" {
		return errors.New("storage.root is required")
	}

	if len(c.Transform.Variants) == 0 {
		return errors.New("transform.variants must define at least one variant")
	}
	seen := make(map[string]bool, len(c.Transform.Variants))
	for _, v := range c.Transform.Variants {
		if v.Label == "" {
			return errors.New("transform.variants contains an empty label")
		}
		if v.MaxWidth <= 0 {
			return fmt.Errorf("transform.variants[%s].max_width must be positive", v.Label)
		}
		if seen[v.Label] {
			return fmt.Errorf("transform.variants label %q is duplicated", v.Label)
		}
		seen[v.Label] = true
	}

	if c.Events.Channel == "" {
		return errors.New("events.channel is required")
	}
	return nil
}
