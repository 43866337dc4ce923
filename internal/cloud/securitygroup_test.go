package cloud

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecurityGroupNameIsStablePerMode(t *testing.T) {
	// Same stem and mode always derive the same name, so repeat invocations
	// reuse the group instead of orphaning duplicates.
	assert.Equal(t,
		securityGroupName("openclaw", ReachabilityPublic),
		securityGroupName("openclaw", ReachabilityPublic),
	)
	assert.Equal(t,
		securityGroupName("openclaw", ReachabilityPrivate),
		securityGroupName("openclaw", ReachabilityPrivate),
	)
}

func TestSecurityGroupNameDistinctAcrossModes(t *testing.T) {
	assert.NotEqual(t,
		securityGroupName("openclaw", ReachabilityPublic),
		securityGroupName("openclaw", ReachabilityPrivate),
	)
}

func TestSecurityGroupNameCarriesStem(t *testing.T) {
	name := securityGroupName("mybox", ReachabilityPublic)
	assert.Contains(t, name, "mybox-")
}
