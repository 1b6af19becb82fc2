package main

// Email provider blank imports. Each import registers a notifier factory
// selected by email.provider.

import (
	_ "github.com/Strob0t/Studio/internal/adapter/email"
	_ "github.com/Strob0t/Studio/internal/adapter/resend"
)
