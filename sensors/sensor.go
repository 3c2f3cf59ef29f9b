package sensors

import (
	"sort"
	"strings"

	logger "github.com/sirupsen/logrus"
)

/*
 * A sensor is a device driver composed from one or more traits. The composite
 * owns one value of each trait and an ordered list of them; capabilities,
 * stored fields and the formatted string all come from walking that list.
 *
 * Calls on one sensor must not overlap. The station polls sequentially.
 */

// State is the lifecycle position of a sensor.
type State int

const (
	Uninitialized State = iota
	Ready
	Faulted
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Faulted:
		return "faulted"
	default:
		return "uninitialized"
	}
}

// Sensor is the common interface the station polls.
type Sensor interface {
	Name() string
	// Init talks to the device once. It may be called again to retry.
	Init() error
	// ReadValues takes one sample. On failure the previous values are kept.
	ReadValues() error
	// StoreValues emits the currently held values, which are stale when
	// Status() is false.
	StoreValues(s FieldSink)
	FormatValues() string
	Capabilities() Capability
	Fields() []string
	Status() bool
	LastError() string
	State() State
	String() string
}

// Compensated sensors use ambient temperature and humidity from another
// sensor to correct their raw signal.
type Compensated interface {
	SetCompensation(tempC, humRH float64)
}

// Modeled sensors report the device model found by Init.
type Modeled interface {
	Model() string
}

const notInitialized = "not initialized"

// composite holds the state shared by every sensor.
type composite struct {
	name        string
	state       State
	err         string
	initialized bool
	traits      []Trait
}

// compose orders traits by their lowest capability bit so output follows the
// capability order: temperature, humidity, pressure, CO2, VOC, ... Traits with
// the same lowest bit keep their declaration order.
func compose(name string, traits ...Trait) composite {
	sort.SliceStable(traits, func(i, j int) bool {
		return traits[i].Capabilities().lowest() < traits[j].Capabilities().lowest()
	})
	return composite{name: name, err: notInitialized, traits: traits}
}

func (c *composite) Name() string      { return c.name }
func (c *composite) Status() bool      { return c.state == Ready }
func (c *composite) LastError() string { return c.err }
func (c *composite) State() State      { return c.state }

// rename replaces the device type name with a configured instance name.
func (c *composite) rename(name string) {
	c.name = name
}

func (c *composite) Capabilities() Capability {
	var caps Capability
	for _, t := range c.traits {
		caps |= t.Capabilities()
	}
	return caps
}

func (c *composite) Fields() []string {
	var f []string
	for _, t := range c.traits {
		f = append(f, t.Fields()...)
	}
	return f
}

func (c *composite) StoreValues(s FieldSink) {
	for _, t := range c.traits {
		t.StoreValues(s)
	}
}

func (c *composite) FormatValues() string {
	var b strings.Builder
	for _, t := range c.traits {
		b.WriteString(t.FormatValues())
	}
	return b.String()
}

func (c *composite) String() string {
	if c.state != Ready {
		return c.name + ": ERR: " + c.err
	}
	return c.name + ": " + c.FormatValues()
}

// initDone records the outcome of Init.
func (c *composite) initDone(err error) error {
	if err != nil {
		c.initialized = false
		return c.fail(err)
	}
	c.initialized = true
	c.succeed()
	return nil
}

// readDone records the outcome of ReadValues.
func (c *composite) readDone(err error) error {
	if err != nil {
		return c.fail(err)
	}
	c.succeed()
	return nil
}

// checkInit guards ReadValues against a device that never initialized.
func (c *composite) checkInit() error {
	if c.initialized {
		return nil
	}
	return c.fail(initError(c.name+" "+notInitialized, nil))
}

func (c *composite) succeed() {
	c.state = Ready
	c.err = ""
}

func (c *composite) fail(err error) error {
	c.state = Faulted
	if e, ok := asError(err); ok {
		c.err = e.Msg
		if e.Err != nil {
			logger.Warnf("%v %v failure [%v]: %v", c.name, e.Kind, e.Reason, e.Err)
		}
	} else {
		c.err = err.Error()
	}
	if c.err == "" {
		c.err = c.name + " error"
	}
	return err
}
