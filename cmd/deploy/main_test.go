package main

import (
	"flag"
	"testing"
)

func TestAddTargetFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	tf := addTargetFlags(fs)

	if err := fs.Parse([]string{"--target", "trackpi", "--ssh-user", "deploy", "--dry-run"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if *tf.target != "trackpi" {
		t.Errorf("target = %s", *tf.target)
	}
	if *tf.sshUser != "deploy" {
		t.Errorf("ssh-user = %s", *tf.sshUser)
	}
	if !*tf.dryRun {
		t.Error("dry-run not set")
	}
	if *tf.debug {
		t.Error("debug should default to false")
	}
}

func TestAddTargetFlags_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	tf := addTargetFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if *tf.target != "localhost" {
		t.Errorf("Default target = %s, want localhost", *tf.target)
	}
	if *tf.dryRun {
		t.Error("dry-run should default to false")
	}
}
