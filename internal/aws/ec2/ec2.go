// Package ec2 declares networks and security groups.
package ec2

import (
	"errors"
	"fmt"
	"net/netip"

	cfnec2 "github.com/awslabs/goformation/v7/cloudformation/ec2"

	"github.com/engr-lynx/cicd/internal/construct"
)

// ErrInvalidCIDR indicates a network range that cannot hold the requested subnets.
var ErrInvalidCIDR = errors.New("invalid cidr")

const (
	// DefaultCIDR is the range of a VPC that does not set one.
	DefaultCIDR = "10.0.0.0/16"

	// DefaultMaxAZs is the number of availability zones a VPC spans by default.
	DefaultMaxAZs = 2
)

// SubnetType selects between subnets routed to the internet and isolated ones.
type SubnetType string

const (
	SubnetTypePublic   SubnetType = "Public"
	SubnetTypeIsolated SubnetType = "Isolated"
)

// VpcProps configures a Vpc.
type VpcProps struct {
	CIDR   string
	MaxAZs int
}

// Subnet is a subnet of a Vpc.
type Subnet struct {
	Type             SubnetType
	CIDR             string
	AvailabilityZone any

	resource *construct.CfnResource
}

// SubnetID returns the id of the subnet.
func (s *Subnet) SubnetID() construct.Token {
	return s.resource.Ref()
}

// Vpc is a network with one public and one isolated subnet per availability zone.
type Vpc struct {
	construct.Base

	resource *construct.CfnResource
	subnets  []*Subnet
}

// NewVpc declares a VPC, its internet gateway, subnets and route tables.
func NewVpc(scope construct.Construct, id string, props VpcProps) (*Vpc, error) {
	cidr := props.CIDR
	if cidr == "" {
		cidr = DefaultCIDR
	}
	maxAZs := props.MaxAZs
	if maxAZs == 0 {
		maxAZs = DefaultMaxAZs
	}

	blocks, err := splitCIDR(cidr, 2*maxAZs)
	if err != nil {
		return nil, fmt.Errorf("vpc '%s': %w", id, err)
	}

	v := &Vpc{}
	if err := v.Init(scope, id, v); err != nil {
		return nil, err
	}

	v.resource, err = construct.NewCfnResource(v, "Resource", construct.CfnResourceProps{
		Type: (&cfnec2.VPC{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"CidrBlock":          cidr,
			"EnableDnsHostnames": true,
			"EnableDnsSupport":   true,
			"InstanceTenancy":    "default",
			"Tags":               nameTag(v.Node().Path()),
		},
	})
	if err != nil {
		return nil, err
	}

	igw, err := construct.NewCfnResource(v, "IGW", construct.CfnResourceProps{
		Type:       (&cfnec2.InternetGateway{}).AWSCloudFormationType(),
		Properties: map[string]any{"Tags": nameTag(v.Node().Path())},
	})
	if err != nil {
		return nil, err
	}

	attachment, err := construct.NewCfnResource(v, "VPCGW", construct.CfnResourceProps{
		Type: (&cfnec2.VPCGatewayAttachment{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"VpcId":             v.resource.Ref(),
			"InternetGatewayId": igw.Ref(),
		},
	})
	if err != nil {
		return nil, err
	}

	for i := range 2 * maxAZs {
		subnetType := SubnetTypePublic
		if i >= maxAZs {
			subnetType = SubnetTypeIsolated
		}
		az := construct.Select(i%maxAZs, construct.GetAZs(nil))

		subnet, err := v.addSubnet(fmt.Sprintf("%sSubnet%d", subnetType, i%maxAZs+1), subnetType, blocks[i].String(), az, igw, attachment)
		if err != nil {
			return nil, err
		}
		v.subnets = append(v.subnets, subnet)
	}

	return v, nil
}

func (v *Vpc) addSubnet(
	id string,
	subnetType SubnetType,
	cidr string,
	az any,
	igw *construct.CfnResource,
	attachment *construct.CfnResource,
) (*Subnet, error) {
	group, err := construct.NewCfnResource(v, id, construct.CfnResourceProps{
		Type: (&cfnec2.Subnet{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"VpcId":               v.resource.Ref(),
			"CidrBlock":           cidr,
			"AvailabilityZone":    az,
			"MapPublicIpOnLaunch": subnetType == SubnetTypePublic,
			"Tags":                nameTag(v.Node().Path() + "/" + id),
		},
	})
	if err != nil {
		return nil, err
	}

	table, err := construct.NewCfnResource(v, id+"RouteTable", construct.CfnResourceProps{
		Type: (&cfnec2.RouteTable{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"VpcId": v.resource.Ref(),
			"Tags":  nameTag(v.Node().Path() + "/" + id),
		},
	})
	if err != nil {
		return nil, err
	}

	_, err = construct.NewCfnResource(v, id+"RouteTableAssociation", construct.CfnResourceProps{
		Type: (&cfnec2.SubnetRouteTableAssociation{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"RouteTableId": table.Ref(),
			"SubnetId":     group.Ref(),
		},
	})
	if err != nil {
		return nil, err
	}

	if subnetType == SubnetTypePublic {
		route, err := construct.NewCfnResource(v, id+"DefaultRoute", construct.CfnResourceProps{
			Type: (&cfnec2.Route{}).AWSCloudFormationType(),
			Properties: map[string]any{
				"RouteTableId":         table.Ref(),
				"DestinationCidrBlock": "0.0.0.0/0",
				"GatewayId":            igw.Ref(),
			},
		})
		if err != nil {
			return nil, err
		}
		if err := route.AddDependsOn(attachment); err != nil {
			return nil, err
		}
	}

	return &Subnet{
		Type:             subnetType,
		CIDR:             cidr,
		AvailabilityZone: az,
		resource:         group,
	}, nil
}

// VpcID returns the id of the VPC.
func (v *Vpc) VpcID() construct.Token {
	return v.resource.Ref()
}

// CidrBlock returns the range of the VPC.
func (v *Vpc) CidrBlock() construct.Token {
	return v.resource.GetAtt("CidrBlock")
}

// Subnets returns the subnets of the given type.
func (v *Vpc) Subnets(subnetType SubnetType) []*Subnet {
	var subnets []*Subnet
	for _, s := range v.subnets {
		if s.Type == subnetType {
			subnets = append(subnets, s)
		}
	}
	return subnets
}

// SubnetIDs returns the ids of the subnets of the given type.
func (v *Vpc) SubnetIDs(subnetType SubnetType) []any {
	var ids []any
	for _, s := range v.Subnets(subnetType) {
		ids = append(ids, s.SubnetID())
	}
	return ids
}

// Resource returns the underlying VPC resource.
func (v *Vpc) Resource() *construct.CfnResource {
	return v.resource
}

// splitCIDR divides cidr into count equally sized blocks, rounded up to a power of two.
func splitCIDR(cidr string, count int) ([]netip.Prefix, error) {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCIDR, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("%w: '%s' is not an IPv4 range", ErrInvalidCIDR, cidr)
	}
	prefix = prefix.Masked()

	extraBits := 0
	for 1<<extraBits < count {
		extraBits++
	}
	bits := prefix.Bits() + extraBits
	if bits > 28 {
		return nil, fmt.Errorf("%w: '%s' is too small for %d subnets", ErrInvalidCIDR, cidr, count)
	}

	size := uint32(1) << (32 - bits)
	base := prefix.Addr().As4()
	start := uint32(base[0])<<24 | uint32(base[1])<<16 | uint32(base[2])<<8 | uint32(base[3])

	blocks := make([]netip.Prefix, count)
	for i := range count {
		n := start + uint32(i)*size
		addr := netip.AddrFrom4([4]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
		blocks[i] = netip.PrefixFrom(addr, bits)
	}
	return blocks, nil
}

func nameTag(name string) []any {
	return []any{map[string]any{"Key": "Name", "Value": name}}
}

// SecurityGroupProps configures a SecurityGroup.
type SecurityGroupProps struct {
	Vpc         *Vpc
	Description string
}

// SecurityGroup allows all outbound traffic and the inbound rules added to it.
type SecurityGroup struct {
	construct.Base

	resource *construct.CfnResource
	ingress  []any
}

// NewSecurityGroup declares a security group in props.Vpc.
func NewSecurityGroup(scope construct.Construct, id string, props SecurityGroupProps) (*SecurityGroup, error) {
	if props.Vpc == nil {
		return nil, fmt.Errorf("%w: security group '%s' requires a vpc", construct.ErrInvalidConstruct, id)
	}

	g := &SecurityGroup{}
	if err := g.Init(scope, id, g); err != nil {
		return nil, err
	}

	description := props.Description
	if description == "" {
		description = g.Node().Path()
	}

	var err error
	g.resource, err = construct.NewCfnResource(g, "Resource", construct.CfnResourceProps{
		Type: (&cfnec2.SecurityGroup{}).AWSCloudFormationType(),
		Properties: map[string]any{
			"GroupDescription": description,
			"VpcId":            props.Vpc.VpcID(),
			"SecurityGroupEgress": []any{
				map[string]any{"CidrIp": "0.0.0.0/0", "Description": "Allow all outbound traffic by default", "IpProtocol": "-1"},
			},
			"SecurityGroupIngress": construct.Lazy(func() (any, error) {
				if len(g.ingress) == 0 {
					return nil, nil
				}
				return g.ingress, nil
			}),
		},
	})
	if err != nil {
		return nil, err
	}

	return g, nil
}

// AllowTCP adds an inbound rule for port from peer, which may be a token.
func (g *SecurityGroup) AllowTCP(peer any, port int, description string) {
	g.ingress = append(g.ingress, map[string]any{
		"CidrIp":      peer,
		"Description": description,
		"FromPort":    port,
		"ToPort":      port,
		"IpProtocol":  "tcp",
	})
}

// GroupID returns the id of the security group.
func (g *SecurityGroup) GroupID() construct.Token {
	return g.resource.GetAtt("GroupId")
}

// Resource returns the underlying security group resource.
func (g *SecurityGroup) Resource() *construct.CfnResource {
	return g.resource
}
